package backend

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/observability"
)

type guarded struct {
	next    Searcher
	name    string
	timeout time.Duration
	limiter *rate.Limiter
}

// Guard bounds each call to next with timeout (0 disables it) and waits on
// limiter (nil disables it). Calls are timed under upstream name.
func Guard(next Searcher, name string, timeout time.Duration, limiter *rate.Limiter) Searcher {
	return &guarded{next: next, name: name, timeout: timeout, limiter: limiter}
}

// NewLimiter returns nil for rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (g *guarded) enter(ctx context.Context) (context.Context, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("backend rate limit: %w", err)
		}
	}
	return ctx, cancel, nil
}

func (g *guarded) Autocomplete(ctx context.Context, q model.CanonicalQuery) ([]model.Place, error) {
	ctx, cancel, err := g.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	out, err := g.next.Autocomplete(ctx, q)
	observability.ObserveUpstreamLatency(g.name, "autocomplete", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("autocomplete: %w", err)
	}
	return out, nil
}

func (g *guarded) Feature(ctx context.Context, scope model.DatasetScope, id string) ([]model.Place, error) {
	ctx, cancel, err := g.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	out, err := g.next.Feature(ctx, scope, id)
	observability.ObserveUpstreamLatency(g.name, "feature", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", id, err)
	}
	return out, nil
}

// Ping is timed out but not rate limited so readiness never queues behind traffic.
func (g *guarded) Ping(ctx context.Context) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.next.Ping(ctx)
}
