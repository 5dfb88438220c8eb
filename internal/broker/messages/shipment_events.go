package messages

import (
	"time"
)

const (
	ShipmentEventCreated       = "shipment.created"
	ShipmentEventStatusChanged = "shipment.status_changed"
)

// ShipmentEvent is published after a shipment is created or changes status.
type ShipmentEvent struct {
	Type           string    `json:"type"`
	ShipmentID     uint64    `json:"shipment_id"`
	UserID         uint64    `json:"user_id"`
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Description    string    `json:"description,omitempty"`
	Location       *string   `json:"location,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ShipmentStatusReported is consumed from carriers and depots reporting progress.
type ShipmentStatusReported struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	Location       *string   `json:"location,omitempty"`
	ReportedAt     time.Time `json:"reported_at"`
}
