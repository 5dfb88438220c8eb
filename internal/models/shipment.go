package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShipmentStatus string

// Lifecycle is linear: waiting -> in_transit -> delivered.
const (
	ShipmentStatusWaiting   ShipmentStatus = "waiting"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
)

var shipmentLifecycle = []ShipmentStatus{
	ShipmentStatusWaiting,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
}

func (s ShipmentStatus) position() int {
	for i, st := range shipmentLifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

func (s ShipmentStatus) Valid() bool { return s.position() >= 0 }

// Next returns the status that follows s, false for delivered and unknown statuses.
func (s ShipmentStatus) Next() (ShipmentStatus, bool) {
	i := s.position()
	if i < 0 || i+1 >= len(shipmentLifecycle) {
		return "", false
	}
	return shipmentLifecycle[i+1], true
}

// CanTransitionTo reports whether to is the immediate successor of s.
func (s ShipmentStatus) CanTransitionTo(to ShipmentStatus) bool {
	next, ok := s.Next()
	return ok && next == to
}

const InitialHistoryDescription = "Shipment created"

type Package struct {
	Weight decimal.Decimal `json:"weight"`
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
}

type Shipment struct {
	ID             uint64          `json:"id"`
	UserID         uint64          `json:"userId"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	Package        Package         `json:"package"`
	QuotedPrice    decimal.Decimal `json:"quotedPrice"`
	Status         ShipmentStatus  `json:"status"`
	TrackingNumber string          `json:"trackingNumber"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type ShipmentStatusHistory struct {
	ID          uint64         `json:"id"`
	ShipmentID  uint64         `json:"shipmentId"`
	Status      ShipmentStatus `json:"status"`
	Description string         `json:"description"`
	Location    *string        `json:"location,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type ShipmentCreateInput struct {
	UserID         uint64
	Origin         string
	Destination    string
	Package        Package
	QuotedPrice    decimal.Decimal
	TrackingNumber string
}

type StatusTransition struct {
	ShipmentID  uint64
	From        ShipmentStatus
	To          ShipmentStatus
	Description string
	Location    *string
}
