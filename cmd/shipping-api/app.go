package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type shippingAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	consumerRestartDelay time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	ConsumeStatusReports(ctx context.Context, apply kafka.StatusReportFunc) error
}

type statusApplier interface {
	ApplyReportedStatus(ctx context.Context, msg messages.ShipmentStatusReported) error
}

func runShippingAPI(ctx context.Context, opts shippingAPIOpts, api http.Handler, statuses statusApplier, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api, opts.swaggerPath)
	}()

	if consumer != nil {
		go runConsumer(ctx, opts, consumer, statuses)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// runConsumer restarts consumption after a handler or broker failure. The
// failed message was not committed and is fetched again.
func runConsumer(ctx context.Context, opts shippingAPIOpts, consumer kafkaConsumer, statuses statusApplier) {
	restartDelay := opts.consumerRestartDelay
	if restartDelay <= 0 {
		restartDelay = time.Second
	}
	for {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		err := consumer.ConsumeStatusReports(ctx, statuses.ApplyReportedStatus)
		if ctx.Err() != nil {
			return
		}
		slog.Error("kafka consumer stopped", "topic", opts.topic, "error", fmt.Sprint(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, api http.Handler, swaggerPath string) error {
	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	r.Mount("/", api)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
