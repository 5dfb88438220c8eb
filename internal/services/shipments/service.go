// Package shipments owns shipment creation and status progression. It is the
// only writer of shipments and their status history.
package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	ListShipmentsByUser(ctx context.Context, userID uint64) ([]*models.Shipment, error)
	ListStatusHistory(ctx context.Context, shipmentID uint64) ([]*models.ShipmentStatusHistory, error)
	ApplyStatusTransition(ctx context.Context, tr models.StatusTransition) (*models.Shipment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Settings struct {
	UserListTTL       time.Duration
	DetailsTTL        time.Duration
	DependencyTimeout time.Duration
	TrackingAttempts  int
	EventsTopic       string
}

func DefaultSettings() Settings {
	return Settings{
		UserListTTL:       5 * time.Minute,
		DetailsTTL:        10 * time.Minute,
		DependencyTimeout: 3 * time.Second,
		TrackingAttempts:  5,
		EventsTopic:       "shipment.events",
	}
}

const createdMessage = "Shipment created successfully with 'waiting' status"

type CreateResult struct {
	ID             uint64                `json:"id"`
	TrackingNumber string                `json:"trackingNumber"`
	Status         models.ShipmentStatus `json:"status"`
	Message        string                `json:"message"`
}

// TrackingView is the full tracking read model. Callers exposing it publicly
// must strip it down first (see services/tracking).
type TrackingView struct {
	Shipment *models.Shipment
	History  []*models.ShipmentStatusHistory
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	producer Producer
	gen      *TrackingNumberGenerator
	settings Settings
}

func New(repo Repository, c cache.BytesCache, producer Producer) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		producer: producer,
		gen:      NewTrackingNumberGenerator(DefaultTrackingPrefix),
		settings: DefaultSettings(),
	}
}

// WithSettings overrides the positive fields of st; zero values keep defaults.
func (s *Service) WithSettings(st Settings) *Service {
	if st.UserListTTL > 0 {
		s.settings.UserListTTL = st.UserListTTL
	}
	if st.DetailsTTL > 0 {
		s.settings.DetailsTTL = st.DetailsTTL
	}
	if st.DependencyTimeout > 0 {
		s.settings.DependencyTimeout = st.DependencyTimeout
	}
	if st.TrackingAttempts > 0 {
		s.settings.TrackingAttempts = st.TrackingAttempts
	}
	if st.EventsTopic != "" {
		s.settings.EventsTopic = st.EventsTopic
	}
	return s
}

func (s *Service) WithGenerator(g *TrackingNumberGenerator) *Service {
	if g != nil {
		s.gen = g
	}
	return s
}

func (s *Service) CreateShipment(ctx context.Context, userID uint64, req models.CreateShipmentRequest) (*CreateResult, error) {
	if userID == 0 {
		return nil, apperr.Unauthorized("authentication required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	in := models.ShipmentCreateInput{
		UserID:      userID,
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		Package:     req.Package(),
		QuotedPrice: req.QuotedPrice,
	}

	// Only a tracking number collision is retried: the transaction was rolled
	// back, so nothing was written. Any other failure is surfaced as is.
	var sh *models.Shipment
	for attempt := 1; attempt <= s.settings.TrackingAttempts; attempt++ {
		in.TrackingNumber = s.gen.Next()

		tctx, cancel := s.withTimeout(ctx)
		created, err := s.repo.CreateShipment(tctx, in)
		cancel()
		if errors.Is(err, models.ErrTrackingNumberTaken) {
			slog.Warn("tracking number collision", "tracking_number", in.TrackingNumber, "attempt", attempt)
			continue
		}
		if err != nil {
			slog.Error("create shipment", "user_id", userID, "error", err.Error())
			return nil, apperr.Dependency("create shipment", err)
		}
		sh = created
		break
	}
	if sh == nil {
		err := fmt.Errorf("no unique tracking number after %d attempts", s.settings.TrackingAttempts)
		slog.Error("create shipment", "user_id", userID, "error", err.Error())
		return nil, apperr.Dependency("create shipment", err)
	}

	s.invalidateUser(ctx, userID)
	s.publish(ctx, messages.ShipmentEvent{
		Type:           messages.ShipmentEventCreated,
		ShipmentID:     sh.ID,
		UserID:         sh.UserID,
		TrackingNumber: sh.TrackingNumber,
		Status:         string(sh.Status),
		Description:    models.InitialHistoryDescription,
		OccurredAt:     sh.CreatedAt,
	})

	return &CreateResult{
		ID:             sh.ID,
		TrackingNumber: sh.TrackingNumber,
		Status:         sh.Status,
		Message:        createdMessage,
	}, nil
}

func (s *Service) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	if id == 0 {
		return nil, apperr.Validation("id", "must be a positive integer")
	}

	var cached models.Shipment
	if s.cacheGet(ctx, detailsKey(id), &cached) {
		return &cached, nil
	}

	tctx, cancel := s.withTimeout(ctx)
	sh, err := s.repo.GetShipmentByID(tctx, id)
	cancel()
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFound("shipment not found")
	}
	if err != nil {
		slog.Error("get shipment", "shipment_id", id, "error", err.Error())
		return nil, apperr.Dependency("get shipment", err)
	}

	s.cacheSet(ctx, detailsKey(id), sh, s.settings.DetailsTTL)
	return sh, nil
}

// GetUserShipment is GetShipmentByID restricted to the owner. Shipments of
// other users are reported as not found so their existence does not leak.
func (s *Service) GetUserShipment(ctx context.Context, userID, id uint64) (*models.Shipment, error) {
	sh, err := s.GetShipmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh.UserID != userID {
		return nil, apperr.NotFound("shipment not found")
	}
	return sh, nil
}

// GetUserShipments returns the user's shipments, newest first.
func (s *Service) GetUserShipments(ctx context.Context, userID uint64) ([]*models.Shipment, error) {
	if userID == 0 {
		return nil, apperr.Unauthorized("authentication required")
	}

	var cached []*models.Shipment
	if s.cacheGet(ctx, userListKey(userID), &cached) {
		return cached, nil
	}

	tctx, cancel := s.withTimeout(ctx)
	list, err := s.repo.ListShipmentsByUser(tctx, userID)
	cancel()
	if err != nil {
		slog.Error("list shipments", "user_id", userID, "error", err.Error())
		return nil, apperr.Dependency("list shipments", err)
	}

	s.cacheSet(ctx, userListKey(userID), list, s.settings.UserListTTL)
	return list, nil
}

// GetShipmentTracking reads straight from storage: tracking is the freshest view
// of a shipment and bypasses the details cache.
func (s *Service) GetShipmentTracking(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, apperr.Validation("trackingNumber", "is required")
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sh, err := s.repo.GetShipmentByTrackingNumber(tctx, trackingNumber)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFound("shipment not found")
	}
	if err != nil {
		slog.Error("get shipment by tracking number", "tracking_number", trackingNumber, "error", err.Error())
		return nil, apperr.Dependency("get shipment tracking", err)
	}

	history, err := s.repo.ListStatusHistory(tctx, sh.ID)
	if err != nil {
		slog.Error("list status history", "shipment_id", sh.ID, "error", err.Error())
		return nil, apperr.Dependency("get shipment tracking", err)
	}
	if history == nil {
		history = []*models.ShipmentStatusHistory{}
	}

	return &TrackingView{Shipment: sh, History: history}, nil
}

// TransitionStatus advances a shipment by exactly one lifecycle step and
// appends the matching history row.
func (s *Service) TransitionStatus(ctx context.Context, shipmentID uint64, req models.StatusTransitionRequest) (*models.Shipment, error) {
	if shipmentID == 0 {
		return nil, apperr.Validation("id", "must be a positive integer")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	current, err := s.repo.GetShipmentByID(tctx, shipmentID)
	cancel()
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFound("shipment not found")
	}
	if err != nil {
		slog.Error("get shipment", "shipment_id", shipmentID, "error", err.Error())
		return nil, apperr.Dependency("transition status", err)
	}

	return s.transition(ctx, current, req)
}

// TransitionUserShipment is TransitionStatus restricted to the owner.
func (s *Service) TransitionUserShipment(ctx context.Context, userID, shipmentID uint64, req models.StatusTransitionRequest) (*models.Shipment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tctx, cancel := s.withTimeout(ctx)
	current, err := s.repo.GetShipmentByID(tctx, shipmentID)
	cancel()
	if errors.Is(err, models.ErrNotFound) || (err == nil && current.UserID != userID) {
		return nil, apperr.NotFound("shipment not found")
	}
	if err != nil {
		slog.Error("get shipment", "shipment_id", shipmentID, "error", err.Error())
		return nil, apperr.Dependency("transition status", err)
	}
	return s.transition(ctx, current, req)
}

// ApplyReportedStatus handles a status report from the event stream.
// Reports that are stale or duplicated are dropped; only dependency failures
// are returned so the message is redelivered.
func (s *Service) ApplyReportedStatus(ctx context.Context, msg messages.ShipmentStatusReported) error {
	tctx, cancel := s.withTimeout(ctx)
	sh, err := s.repo.GetShipmentByTrackingNumber(tctx, strings.TrimSpace(msg.TrackingNumber))
	cancel()
	if errors.Is(err, models.ErrNotFound) {
		slog.Warn("status report for unknown shipment", "tracking_number", msg.TrackingNumber)
		return nil
	}
	if err != nil {
		return apperr.Dependency("apply reported status", err)
	}

	_, err = s.transition(ctx, sh, models.StatusTransitionRequest{
		Status:      models.ShipmentStatus(msg.Status),
		Description: msg.Description,
		Location:    msg.Location,
	})
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindNotFound:
		slog.Warn("status report dropped", "tracking_number", msg.TrackingNumber, "status", msg.Status, "reason", err.Error())
		return nil
	}
	return err
}

func (s *Service) transition(ctx context.Context, current *models.Shipment, req models.StatusTransitionRequest) (*models.Shipment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(req.Status) {
		return nil, apperr.Validation("status", fmt.Sprintf("cannot change status from %s to %s", current.Status, req.Status))
	}

	tctx, cancel := s.withTimeout(ctx)
	updated, err := s.repo.ApplyStatusTransition(tctx, models.StatusTransition{
		ShipmentID:  current.ID,
		From:        current.Status,
		To:          req.Status,
		Description: strings.TrimSpace(req.Description),
		Location:    req.Location,
	})
	cancel()
	switch {
	case errors.Is(err, models.ErrStatusConflict):
		return nil, apperr.Conflict("shipment status changed concurrently")
	case errors.Is(err, models.ErrNotFound):
		return nil, apperr.NotFound("shipment not found")
	case err != nil:
		slog.Error("apply status transition", "shipment_id", current.ID, "error", err.Error())
		return nil, apperr.Dependency("transition status", err)
	}

	cache.Invalidate(ctx, s.cache, detailsKey(updated.ID))
	s.invalidateUser(ctx, updated.UserID)
	s.publish(ctx, messages.ShipmentEvent{
		Type:           messages.ShipmentEventStatusChanged,
		ShipmentID:     updated.ID,
		UserID:         updated.UserID,
		TrackingNumber: updated.TrackingNumber,
		Status:         string(updated.Status),
		PreviousStatus: string(current.Status),
		Description:    req.Description,
		Location:       req.Location,
		OccurredAt:     updated.UpdatedAt,
	})
	return updated, nil
}

func (s *Service) invalidateUser(ctx context.Context, userID uint64) {
	if s.cache == nil {
		return
	}
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cache.InvalidatePattern(tctx, s.cache, userKeysPattern(userID))
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return cache.GetJSON(tctx, s.cache, key, dst)
}

func (s *Service) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cache.SetJSON(tctx, s.cache, key, v, ttl)
}

// publish is best effort: the shipment is already committed.
func (s *Service) publish(ctx context.Context, ev messages.ShipmentEvent) {
	if s.producer == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal shipment event", "shipment_id", ev.ShipmentID, "error", err.Error())
		return
	}
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	key := []byte(strconv.FormatUint(ev.ShipmentID, 10))
	if err := s.producer.Publish(tctx, s.settings.EventsTopic, key, b); err != nil {
		slog.Warn("publish shipment event", "shipment_id", ev.ShipmentID, "type", ev.Type, "error", err.Error())
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.DependencyTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.settings.DependencyTimeout)
}
