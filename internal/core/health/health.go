// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/render"
)

// Pinger reports whether a dependency can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

// Readiness pings p with timeout and answers 200 or 503.
func Readiness(p Pinger, timeout time.Duration) http.HandlerFunc {
	type resp struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := p.Ping(ctx); err != nil {
			render.JSON(w, http.StatusServiceUnavailable, resp{Status: "not_ready", Error: err.Error()})
			return
		}
		render.JSON(w, http.StatusOK, resp{Status: "ready"})
	}
}
