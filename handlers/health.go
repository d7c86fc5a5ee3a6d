package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/pitabwire/util"
)

// Checker wraps the CheckHealth method.
//
// CheckHealth returns nil if the resource is healthy, or a non-nil
// error if the resource is not healthy. CheckHealth must be safe to
// call from multiple goroutines.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc is an adapter type to allow the use of ordinary functions as
// health checks.
type CheckerFunc func(ctx context.Context) error

// CheckHealth calls f(ctx).
func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// Health returns 200 if every checker is healthy, 500 otherwise.
func Health(checkers ...Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checkers {
			if err := c.CheckHealth(r.Context()); err != nil {
				util.Log(r.Context()).WithError(err).Warn("health check failed")
				writeHealth(w, http.StatusInternalServerError, "unhealthy")
				return
			}
		}
		writeHealth(w, http.StatusOK, "ok")
	}
}

func writeHealth(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
