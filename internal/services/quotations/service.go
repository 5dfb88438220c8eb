package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/pricing"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type TariffRepository interface {
	FindTariff(ctx context.Context, origin, destination string) (*models.Tariff, error)
	ListTariffs(ctx context.Context) ([]*models.Tariff, error)
}

const (
	defaultQuotationTTL = 30 * time.Minute
	defaultTimeout      = 3 * time.Second
	lookupAttempts      = 3
	lookupBackoff       = 50 * time.Millisecond
)

type Service struct {
	repo    TariffRepository
	cache   cache.BytesCache
	engine  *pricing.Engine
	ttl     time.Duration
	timeout time.Duration
	backoff time.Duration
}

func New(repo TariffRepository, c cache.BytesCache, engine *pricing.Engine) *Service {
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultVolumeWeightDivisor)
	}
	return &Service{
		repo:    repo,
		cache:   c,
		engine:  engine,
		ttl:     defaultQuotationTTL,
		timeout: defaultTimeout,
		backoff: lookupBackoff,
	}
}

func (s *Service) withBackoff(d time.Duration) *Service {
	s.backoff = d
	return s
}

// WithTTL sets how long quotation results stay cached. ttl <= 0 disables caching.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	s.ttl = ttl
	return s
}

func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *Service) Quote(ctx context.Context, req models.QuoteRequest) (*models.QuotationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalize()

	key := quotationKey(req, s.engine.Divisor())
	var cached models.QuotationResult
	if s.ttl > 0 && s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	tariff, err := s.findTariff(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, err
	}

	res := s.engine.Quote(models.Package{
		Weight: req.Weight,
		Length: req.Length,
		Width:  req.Width,
		Height: req.Height,
	}, *tariff)

	if s.ttl > 0 {
		s.cacheSet(ctx, key, res)
	}
	return &res, nil
}

func (s *Service) ListTariffs(ctx context.Context) ([]*models.Tariff, error) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.repo.ListTariffs(tctx)
	if err != nil {
		slog.Error("list tariffs", "error", err.Error())
		return nil, apperr.Dependency("list tariffs", err)
	}
	if list == nil {
		list = []*models.Tariff{}
	}
	return list, nil
}

// findTariff retries storage failures with linear backoff. A missing tariff is
// final and never retried.
func (s *Service) findTariff(ctx context.Context, origin, destination string) (*models.Tariff, error) {
	var lastErr error
	for attempt := 1; attempt <= lookupAttempts; attempt++ {
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		t, err := s.repo.FindTariff(tctx, origin, destination)
		cancel()

		if err == nil {
			return t, nil
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("no tariff for route %s -> %s", origin, destination))
		}
		lastErr = err
		slog.Warn("find tariff failed", "origin", origin, "destination", destination, "attempt", attempt, "error", err.Error())

		if attempt == lookupAttempts {
			break
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*s.backoff); err != nil {
			lastErr = err
			break
		}
	}

	slog.Error("find tariff", "origin", origin, "destination", destination, "error", lastErr.Error())
	return nil, apperr.Dependency("find tariff", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return cache.GetJSON(tctx, s.cache, key, dst)
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cache.SetJSON(tctx, s.cache, key, v, s.ttl)
}

// quotationKey is built from normalized inputs so that "2.50" and "2.5" share an entry.
// City names are quoted so a ':' inside one cannot shift the fields.
func quotationKey(req models.QuoteRequest, divisor decimal.Decimal) string {
	return fmt.Sprintf("quotation:%q:%q:%s:%s:%s:%s:%s",
		req.Origin,
		req.Destination,
		req.Weight.String(),
		req.Length.String(),
		req.Width.String(),
		req.Height.String(),
		divisor.String(),
	)
}
