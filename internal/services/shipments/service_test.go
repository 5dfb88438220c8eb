package shipments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	shipmentsmocks "github.com/BearBump/ShipBox/internal/services/shipments/mocks"
)

func sampleShipment(id, userID uint64) *models.Shipment {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Shipment{
		ID:          id,
		UserID:      userID,
		Origin:      "Bogota",
		Destination: "Medellin",
		Package: models.Package{
			Weight: decimal.RequireFromString("2.5"),
			Length: decimal.NewFromInt(30),
			Width:  decimal.NewFromInt(20),
			Height: decimal.NewFromInt(15),
		},
		QuotedPrice:    decimal.RequireFromString("800.00"),
		Status:         models.ShipmentStatusWaiting,
		TrackingNumber: "ENV123456ABCDEFGH",
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

// Reads served from the cache must be indistinguishable from storage reads.
func TestGetShipmentByID_CachedReadMatchesStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	c := rediscache.New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	repo := &shipmentsmocks.MockRepository{}
	repo.On("GetShipmentByID", mock.Anything, uint64(5)).Return(sampleShipment(5, 1), nil).Once()

	svc := New(repo, c, nil)
	ctx := context.Background()

	first, err := svc.GetShipmentByID(ctx, 5)
	require.NoError(t, err)
	require.True(t, mr.Exists("shipment:5"))

	second, err := svc.GetShipmentByID(ctx, 5)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	require.Equal(t, string(a), string(b))
	repo.AssertExpectations(t)
}

func TestGetUserShipments_CacheDownStillServes(t *testing.T) {
	mr := miniredis.RunT(t)
	c := rediscache.New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	mr.Close()

	repo := &shipmentsmocks.MockRepository{}
	repo.On("ListShipmentsByUser", mock.Anything, uint64(1)).
		Return([]*models.Shipment{sampleShipment(2, 1), sampleShipment(1, 1)}, nil).Once()

	svc := New(repo, c, nil).WithSettings(Settings{DependencyTimeout: 500 * time.Millisecond})
	out, err := svc.GetUserShipments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, uint64(2), out[0].ID)
}

func TestCreateShipment_InvalidatesUserList(t *testing.T) {
	mr := miniredis.RunT(t)
	c := rediscache.New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	repo := &shipmentsmocks.MockRepository{}
	repo.On("ListShipmentsByUser", mock.Anything, uint64(1)).
		Return([]*models.Shipment{sampleShipment(1, 1)}, nil).Once()
	repo.On("CreateShipment", mock.Anything, mock.Anything).Return(sampleShipment(2, 1), nil).Once()
	repo.On("ListShipmentsByUser", mock.Anything, uint64(1)).
		Return([]*models.Shipment{sampleShipment(2, 1), sampleShipment(1, 1)}, nil).Once()

	svc := New(repo, c, nil)
	ctx := context.Background()

	out, err := svc.GetUserShipments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, mr.Exists("shipments:user:1:list"))

	_, err = svc.CreateShipment(ctx, 1, models.CreateShipmentRequest{
		Origin:      "Bogota",
		Destination: "Medellin",
		Weight:      decimal.NewFromInt(1),
		Length:      decimal.NewFromInt(1),
		Width:       decimal.NewFromInt(1),
		Height:      decimal.NewFromInt(1),
		QuotedPrice: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("shipments:user:1:list"))

	out, err = svc.GetUserShipments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	repo.AssertExpectations(t)
}

func TestGetShipmentByID_Errors(t *testing.T) {
	repo := &shipmentsmocks.MockRepository{}
	repo.On("GetShipmentByID", mock.Anything, uint64(9)).Return(nil, models.ErrNotFound).Once()
	repo.On("GetShipmentByID", mock.Anything, uint64(10)).Return(nil, context.DeadlineExceeded).Once()

	svc := New(repo, nil, nil)

	_, err := svc.GetShipmentByID(context.Background(), 0)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.GetShipmentByID(context.Background(), 9)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.GetShipmentByID(context.Background(), 10)
	require.True(t, apperr.Is(err, apperr.KindDependencyTimeout))
	require.NotContains(t, err.Error(), "deadline")
}
