// Package backend defines the search collaborator the HTTP layer calls and
// the registry that builds one from config.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

// DefaultName is used when the configured backend is unknown.
const DefaultName = "elasticsearch"

// ErrNotFound is returned by Feature when no place has the id.
var ErrNotFound = errors.New("feature not found")

// Searcher executes canonical queries. Implementations must be safe for
// concurrent use.
type Searcher interface {
	Autocomplete(ctx context.Context, q model.CanonicalQuery) ([]model.Place, error)
	Feature(ctx context.Context, scope model.DatasetScope, id string) ([]model.Place, error)
	Ping(ctx context.Context) error
}

type Factory func(cfg config.Config, logger *slog.Logger) (Searcher, error)

var (
	mu  sync.RWMutex
	reg = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = f
}

// Names lists registered backends in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, cfg config.Config, logger *slog.Logger) (Searcher, error) {
	mu.RLock()
	f, ok := reg[name]
	def, hasDef := reg[DefaultName]
	mu.RUnlock()

	if ok {
		return f(cfg, logger)
	}
	if hasDef {
		logger.Warn("unknown backend; falling back", "backend", name, "fallback", DefaultName)
		return def(cfg, logger)
	}
	return nil, fmt.Errorf("no factory for backend %q and no %s registered", name, DefaultName)
}
