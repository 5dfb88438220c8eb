package shipping_api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/auth"
	"github.com/BearBump/ShipBox/internal/services/quotations"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/BearBump/ShipBox/internal/services/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const limiterTimeout = time.Second

type Limits struct {
	PerWindow     int64
	AuthPerWindow int64
	Window        time.Duration
}

func DefaultLimits() Limits {
	return Limits{PerWindow: 100, AuthPerWindow: 10, Window: 15 * time.Minute}
}

type ShippingAPI struct {
	auth      *auth.Service
	quotes    *quotations.Service
	shipments *shipments.Service
	tracking  *tracking.Service

	limiter cache.Counter
	limits  Limits
	health  func(ctx context.Context) error
	now     func() time.Time
}

func New(authSvc *auth.Service, quotes *quotations.Service, ships *shipments.Service, track *tracking.Service) *ShippingAPI {
	return &ShippingAPI{
		auth:      authSvc,
		quotes:    quotes,
		shipments: ships,
		tracking:  track,
		limits:    DefaultLimits(),
		now:       time.Now,
	}
}

func (a *ShippingAPI) WithRateLimit(c cache.Counter, l Limits) *ShippingAPI {
	a.limiter = c
	if l.Window > 0 {
		a.limits.Window = l.Window
	}
	if l.PerWindow > 0 {
		a.limits.PerWindow = l.PerWindow
	}
	if l.AuthPerWindow > 0 {
		a.limits.AuthPerWindow = l.AuthPerWindow
	}
	return a
}

// WithHealthCheck sets the probe behind /healthz.
func (a *ShippingAPI) WithHealthCheck(fn func(ctx context.Context) error) *ShippingAPI {
	a.health = fn
	return a
}

func (a *ShippingAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog)
	r.Use(metrics)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(a.rateLimit("auth", a.limits.AuthPerWindow))
		r.Post("/auth/register", a.register)
		r.Post("/auth/login", a.login)
		r.Post("/auth/logout", a.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.rateLimit("api", a.limits.PerWindow))
		r.Get("/tariffs", a.listTariffs)
		r.Get("/shipments/tracking/{trackingNumber}", a.trackShipment)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)
			r.Post("/quotation", a.quote)
			r.Post("/shipments", a.createShipment)
			r.Get("/shipments", a.listShipments)
			r.Get("/shipments/{id}", a.getShipment)
			r.Post("/shipments/{id}/status", a.transitionStatus)
		})
	})
	return r
}

func (a *ShippingAPI) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *ShippingAPI) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "user registered successfully", map[string]any{
		"id":       u.ID,
		"nickname": u.Nickname,
		"email":    u.Email,
	})
}

func (a *ShippingAPI) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

func (a *ShippingAPI) logout(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.auth.Revoke(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out", nil)
}

func (a *ShippingAPI) quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.quotes.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *ShippingAPI) listTariffs(w http.ResponseWriter, r *http.Request) {
	list, err := a.quotes.ListTariffs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *ShippingAPI) createShipment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShipmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.shipments.CreateShipment(r.Context(), userIDFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (a *ShippingAPI) listShipments(w http.ResponseWriter, r *http.Request) {
	list, err := a.shipments.GetUserShipments(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *ShippingAPI) getShipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sh, err := a.shipments.GetUserShipment(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sh)
}

func (a *ShippingAPI) transitionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.StatusTransitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sh, err := a.shipments.TransitionUserShipment(r.Context(), userIDFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sh)
}

func (a *ShippingAPI) trackShipment(w http.ResponseWriter, r *http.Request) {
	v, err := a.tracking.Track(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("id", "must be a positive integer")
	}
	return id, nil
}
