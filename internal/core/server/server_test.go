package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/observability"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/metrics"
)

type stubSearcher struct{ pingErr error }

func (stubSearcher) Autocomplete(context.Context, model.CanonicalQuery) ([]model.Place, error) {
	return []model.Place{{ID: "admin:paris"}}, nil
}

func (stubSearcher) Feature(_ context.Context, _ model.DatasetScope, id string) ([]model.Place, error) {
	return []model.Place{{ID: id}}, nil
}

func (s stubSearcher) Ping(context.Context) error { return s.pingErr }

func newHandler(t *testing.T, s stubSearcher) (http.Handler, *metrics.Provider) {
	t.Helper()
	mp := metrics.Init(metrics.Config{Enabled: true})
	observability.Init(mp.Registerer())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(config.Defaults(), logger, s, mp), mp
}

func TestRoutes(t *testing.T) {
	h, _ := newHandler(t, stubSearcher{})
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/v1/status", http.StatusOK},
		{http.MethodGet, "/v1/autocomplete?q=par", http.StatusOK},
		{http.MethodGet, "/v1/features/admin:paris", http.StatusOK},
		{http.MethodOptions, "/v1/autocomplete", http.StatusNoContent},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(c.method, c.path, nil))
		if rr.Code != c.want {
			t.Fatalf("%s %s: status=%d want %d", c.method, c.path, rr.Code, c.want)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: missing X-Request-ID", c.method, c.path)
		}
	}
}

func TestReadyz_BackendDown(t *testing.T) {
	h, _ := newHandler(t, stubSearcher{pingErr: errors.New("connection refused")})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestMetricsExposeRouteLabels(t *testing.T) {
	h, _ := newHandler(t, stubSearcher{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/autocomplete?limit=x", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="/v1/autocomplete",status="400"}`,
		`request_errors_total{kind="validation",route="/v1/autocomplete"}`,
		"autocomplete_build_info",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in metrics:\n%s", want, body)
		}
	}
}
