package shipping_api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const userIDKey ctxKey = iota

func userIDFrom(ctx context.Context) uint64 {
	id, _ := ctx.Value(userIDKey).(uint64)
	return id
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", apperr.Unauthorized("authorization token required")
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperr.Unauthorized("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

func (a *ShippingAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		claims, err := a.auth.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit is a fixed window counter per client IP. The window is part of the
// key so every client shares the same window boundaries. A counter failure
// lets the request through.
func (a *ShippingAPI) rateLimit(scope string, limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if a.limiter == nil || limit <= 0 {
			return next
		}
		window := a.limits.Window
		secs := int64(window / time.Second)
		if secs <= 0 {
			secs = 1
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := a.now().Unix() / secs
			key := fmt.Sprintf("rate_limit:%s:%s:%d", scope, clientIP(r), bucket)

			ctx, cancel := context.WithTimeout(r.Context(), limiterTimeout)
			allowed, n, err := a.limiter.Allow(ctx, key, limit, window)
			cancel()
			if err != nil {
				slog.Warn("rate limiter unavailable", "scope", scope, "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			remaining := limit - n
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt((bucket+1)*secs, 10))

			if !allowed {
				writeJSON(w, http.StatusTooManyRequests, envelope{Message: "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the socket peer. Forwarding headers are client controlled and
// are not trusted for throttling.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
