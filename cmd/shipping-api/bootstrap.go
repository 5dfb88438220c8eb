package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BearBump/ShipBox/config"
	shippingapi "github.com/BearBump/ShipBox/internal/api/shipping_api"
	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/auth"
	"github.com/BearBump/ShipBox/internal/services/pricing"
	"github.com/BearBump/ShipBox/internal/services/quotations"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/BearBump/ShipBox/internal/services/tracking"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultEventsTopic         = "shipment.events"
	defaultStatusReportedTopic = "shipment.status.reported"
)

type shippingAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     shippingAPIOpts
	handler  *shippingapi.ShippingAPI
	ships    *shipments.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapShippingAPI() *shippingAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error: %v", err))
	}
	sb := cfg.ShipBox.WithDefaults()
	if sb.TokenSecret == "" {
		panic("shipbox.token_secret is required")
	}

	eventsTopic := cfg.Kafka.ShipmentEventsTopicName
	if eventsTopic == "" {
		eventsTopic = defaultEventsTopic
	}
	reportedTopic := cfg.Kafka.StatusReportedTopicName
	if reportedTopic == "" {
		reportedTopic = defaultStatusReportedTopic
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	if err := seedTariffs(context.Background(), st, sb.Tariffs); err != nil {
		st.Close()
		panic(err)
	}

	rc := rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, reportedTopic, sb.ConsumerGroup)

	authSvc := auth.New(st, rediscache.NewRevocationSet(rc.Client()), sb.TokenSecret).
		WithTokenTTL(sb.TokenTTL()).
		WithFailOpen(sb.FailOpen()).
		WithTimeout(sb.DependencyTimeout())
	if sb.FailOpen() {
		slog.Warn("token revocation checks fail open: an unreachable redis accepts revoked tokens")
	}

	quotes := quotations.New(st, rc, pricing.NewEngine(sb.VolumeWeightDivisor)).
		WithTTL(sb.QuotationTTL()).
		WithTimeout(sb.DependencyTimeout())

	ships := shipments.New(st, rc, producer).
		WithSettings(shipments.Settings{
			UserListTTL:       sb.UserShipmentsTTL(),
			DetailsTTL:        sb.ShipmentDetailsTTL(),
			DependencyTimeout: sb.DependencyTimeout(),
			TrackingAttempts:  sb.TrackingNumberAttempts,
			EventsTopic:       eventsTopic,
		}).
		WithGenerator(shipments.NewTrackingNumberGenerator(sb.TrackingNumberPrefix))

	api := shippingapi.New(authSvc, quotes, ships, tracking.New(ships)).
		WithRateLimit(rediscache.NewRateLimiter(rc.Client()), shippingapi.Limits{
			PerWindow:     int64(sb.RateLimitPerWindow),
			AuthPerWindow: int64(sb.AuthRateLimitPerWindow),
			Window:        sb.RateLimitWindow(),
		}).
		WithHealthCheck(func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return rc.Ping(ctx)
		})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &shippingAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: shippingAPIOpts{
			httpAddr:      sb.HTTPAddr,
			swaggerPath:   swaggerPath,
			topic:         reportedTopic,
			consumerGroup: sb.ConsumerGroup,
		},
		handler:  api,
		ships:    ships,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			func() { _ = producer.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipping.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipping.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

type tariffUpserter interface {
	UpsertTariff(ctx context.Context, t models.Tariff) (*models.Tariff, error)
}

func seedTariffs(ctx context.Context, st tariffUpserter, seeds []config.TariffSeed) error {
	for _, s := range seeds {
		origin := strings.TrimSpace(s.Origin)
		destination := strings.TrimSpace(s.Destination)
		if origin == "" || destination == "" {
			return errors.Errorf("tariff %q -> %q: origin and destination are required", s.Origin, s.Destination)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(s.PricePerKg))
		if err != nil || !price.IsPositive() || !price.Equal(price.Truncate(2)) {
			return errors.Errorf("tariff %s -> %s: invalid price_per_kg %q", origin, destination, s.PricePerKg)
		}
		if _, err := st.UpsertTariff(ctx, models.Tariff{
			Origin:      origin,
			Destination: destination,
			PricePerKg:  price,
		}); err != nil {
			return errors.Wrapf(err, "seed tariff %s -> %s", origin, destination)
		}
	}
	if len(seeds) > 0 {
		slog.Info("tariffs seeded", "count", len(seeds))
	}
	return nil
}

func (a *shippingAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *shippingAPIApp) Run() error {
	return runShippingAPI(a.ctx, a.opts, a.handler.Routes(), a.ships, a.consumer)
}
