// Package tracking serves the public tracking view. Tracking numbers act as a
// bearer capability, so the view carries only shipment identity and status
// history: no price, package or owner.
package tracking

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/shipments"
)

type Source interface {
	GetShipmentTracking(ctx context.Context, trackingNumber string) (*shipments.TrackingView, error)
}

type Event struct {
	Status      models.ShipmentStatus `json:"status"`
	Description string                `json:"description"`
	Location    *string               `json:"location"`
	Timestamp   time.Time             `json:"timestamp"`
}

type View struct {
	ShipmentID     uint64                `json:"shipmentId"`
	TrackingNumber string                `json:"trackingNumber"`
	CurrentStatus  models.ShipmentStatus `json:"currentStatus"`
	History        []Event               `json:"history"`
}

type Service struct {
	src Source
}

func New(src Source) *Service {
	return &Service{src: src}
}

// Track returns the public view; history is oldest first.
func (s *Service) Track(ctx context.Context, trackingNumber string) (*View, error) {
	tv, err := s.src.GetShipmentTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	return newView(tv), nil
}

func newView(tv *shipments.TrackingView) *View {
	v := &View{
		ShipmentID:     tv.Shipment.ID,
		TrackingNumber: tv.Shipment.TrackingNumber,
		CurrentStatus:  tv.Shipment.Status,
		History:        make([]Event, 0, len(tv.History)),
	}
	for _, h := range tv.History {
		v.History = append(v.History, Event{
			Status:      h.Status,
			Description: h.Description,
			Location:    h.Location,
			Timestamp:   h.CreatedAt,
		})
	}
	return v
}
