package mocks

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	args := m.Called(ctx, in)
	return shipmentArg(args, 0), args.Error(1)
}

func (m *MockRepository) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	args := m.Called(ctx, id)
	return shipmentArg(args, 0), args.Error(1)
}

func (m *MockRepository) GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	args := m.Called(ctx, trackingNumber)
	return shipmentArg(args, 0), args.Error(1)
}

func (m *MockRepository) ListShipmentsByUser(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	args := m.Called(ctx, userID)
	var out []*models.Shipment
	if v := args.Get(0); v != nil {
		out = v.([]*models.Shipment)
	}
	return out, args.Error(1)
}

func (m *MockRepository) ListStatusHistory(ctx context.Context, shipmentID uint64) ([]*models.ShipmentStatusHistory, error) {
	args := m.Called(ctx, shipmentID)
	var out []*models.ShipmentStatusHistory
	if v := args.Get(0); v != nil {
		out = v.([]*models.ShipmentStatusHistory)
	}
	return out, args.Error(1)
}

func (m *MockRepository) ApplyStatusTransition(ctx context.Context, tr models.StatusTransition) (*models.Shipment, error) {
	args := m.Called(ctx, tr)
	return shipmentArg(args, 0), args.Error(1)
}

func shipmentArg(args mock.Arguments, i int) *models.Shipment {
	if v := args.Get(i); v != nil {
		return v.(*models.Shipment)
	}
	return nil
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return m.Called(ctx, topic, key, value).Error(0)
}
