package shipping_api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
)

// memStore is an in-memory stand-in for pgshipping.Storage.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	tariffs   []*models.Tariff
	shipments map[uint64]*models.Shipment
	history   map[uint64][]*models.ShipmentStatusHistory
	nextID    uint64
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*models.User{},
		shipments: map[uint64]*models.Shipment{},
		history:   map[uint64][]*models.ShipmentStatusHistory{},
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return nil, models.ErrEmailTaken
	}
	u.ID = m.id()
	m.users[u.Email] = &u
	out := u
	return &out, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *memStore) FindTariff(ctx context.Context, origin, destination string) (*models.Tariff, error) {
	for _, t := range m.tariffs {
		if t.Origin == origin && t.Destination == destination {
			out := *t
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ListTariffs(ctx context.Context) ([]*models.Tariff, error) {
	return m.tariffs, nil
}

func (m *memStore) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	sh := &models.Shipment{
		ID:             m.id(),
		UserID:         in.UserID,
		Origin:         in.Origin,
		Destination:    in.Destination,
		Package:        in.Package,
		QuotedPrice:    in.QuotedPrice,
		Status:         models.ShipmentStatusWaiting,
		TrackingNumber: in.TrackingNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.shipments[sh.ID] = sh
	m.history[sh.ID] = []*models.ShipmentStatusHistory{{
		ID: m.id(), ShipmentID: sh.ID, Status: models.ShipmentStatusWaiting,
		Description: models.InitialHistoryDescription, CreatedAt: now,
	}}
	out := *sh
	return &out, nil
}

func (m *memStore) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.shipments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *sh
	return &out, nil
}

func (m *memStore) GetShipmentByTrackingNumber(ctx context.Context, tn string) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sh := range m.shipments {
		if sh.TrackingNumber == tn {
			out := *sh
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ListShipmentsByUser(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Shipment{}
	for _, sh := range m.shipments {
		if sh.UserID == userID {
			c := *sh
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ListStatusHistory(ctx context.Context, shipmentID uint64) ([]*models.ShipmentStatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ShipmentStatusHistory(nil), m.history[shipmentID]...), nil
}

func (m *memStore) ApplyStatusTransition(ctx context.Context, tr models.StatusTransition) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.shipments[tr.ShipmentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if sh.Status != tr.From {
		return nil, models.ErrStatusConflict
	}
	sh.Status = tr.To
	sh.UpdatedAt = time.Now().UTC()
	m.history[sh.ID] = append(m.history[sh.ID], &models.ShipmentStatusHistory{
		ID: m.id(), ShipmentID: sh.ID, Status: tr.To, Description: tr.Description,
		Location: tr.Location, CreatedAt: sh.UpdatedAt,
	})
	out := *sh
	return &out, nil
}
