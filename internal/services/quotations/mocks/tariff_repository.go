package mocks

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockTariffRepository struct {
	mock.Mock
}

func (m *MockTariffRepository) FindTariff(ctx context.Context, origin, destination string) (*models.Tariff, error) {
	args := m.Called(ctx, origin, destination)
	var t *models.Tariff
	if v := args.Get(0); v != nil {
		t = v.(*models.Tariff)
	}
	return t, args.Error(1)
}

func (m *MockTariffRepository) ListTariffs(ctx context.Context) ([]*models.Tariff, error) {
	args := m.Called(ctx)
	var out []*models.Tariff
	if v := args.Get(0); v != nil {
		out = v.([]*models.Tariff)
	}
	return out, args.Error(1)
}
