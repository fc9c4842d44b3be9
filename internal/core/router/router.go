// Package router maps the public HTTP surface onto query normalization, the
// search backend and the response renderer.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/backend"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/apperr"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/config"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/observability"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/params"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/query"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/render"
	mylog "github.com/mohammed-shakir/autocomplete-gateway/internal/logger"
)

const (
	RouteRoot         = "/"
	RouteStatus       = "/v1/status"
	RouteFeature      = "/v1/features/{id}"
	RouteAutocomplete = "/v1/autocomplete"
)

// API holds what every handler needs. It is built once at startup and is
// read-only afterwards.
type API struct {
	logger *slog.Logger
	cfg    config.Config
	norm   *query.Normalizer
	search backend.Searcher
}

func New(logger *slog.Logger, cfg config.Config, search backend.Searcher) *API {
	return &API{
		logger: logger,
		cfg:    cfg,
		norm:   query.NewNormalizer(query.Defaults{Offset: cfg.DefaultOffset, Limit: cfg.DefaultLimit}),
		search: search,
	}
}

// Mount registers the public routes on r.
func (a *API) Mount(r chi.Router) {
	r.Get(RouteRoot, a.instrument(RouteRoot, a.root))
	r.Get(RouteStatus, a.instrument(RouteStatus, a.status))
	r.Get(RouteFeature, a.instrument(RouteFeature, a.feature))
	r.Get(RouteAutocomplete, a.instrument(RouteAutocomplete, a.autocompletePoint))
	r.Post(RouteAutocomplete, a.instrument(RouteAutocomplete, a.autocompleteShape))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (a *API) instrument(route string, fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

// fail renders err and logs it: caller mistakes at debug, the rest at warn.
func (a *API) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	se := render.Error(w, err)
	observability.IncRequestError(route, se.Kind.String())
	if se.Kind == apperr.KindValidation {
		a.logger.DebugContext(r.Context(), "request rejected", "route", route, "err", se.Long)
		return
	}
	a.logger.WarnContext(r.Context(), "request failed", "route", route, "err", err)
}

func (a *API) root(w http.ResponseWriter, _ *http.Request) {
	render.OK(w, model.EndPoint{Description: "autocomplete service"})
}

func (a *API) status(w http.ResponseWriter, _ *http.Request) {
	render.OK(w, model.Status{
		Version: a.cfg.Version,
		ES:      a.cfg.ESConnString,
		Status:  "good",
	})
}

func (a *API) feature(w http.ResponseWriter, r *http.Request) {
	p := params.FromQuery(r.URL.Query(), query.ParamAllData)
	scope, id, err := a.norm.FeatureLookup(chi.URLParam(r, query.ParamID), p)
	if err != nil {
		a.fail(w, r, RouteFeature, err)
		return
	}
	ctx := mylog.WithDataset(r.Context(), scope.Dataset())
	places, err := a.search.Feature(ctx, scope, id)
	if err != nil {
		a.fail(w, r.WithContext(ctx), RouteFeature, err)
		return
	}
	render.OK(w, model.NewAutocompleteResponse("", places))
}

func (a *API) autocompletePoint(w http.ResponseWriter, r *http.Request) {
	q, err := a.norm.PointQuery(params.FromQuery(r.URL.Query(), query.ParamAllData))
	if err != nil {
		a.fail(w, r, RouteAutocomplete, err)
		return
	}
	a.autocomplete(w, r, q)
}

// the JSON body wins over query-string parameters of the same name
func (a *API) autocompleteShape(w http.ResponseWriter, r *http.Request) {
	body, err := params.FromJSON(r.Body)
	if err != nil {
		a.fail(w, r, RouteAutocomplete, err)
		return
	}
	q, err := a.norm.ShapeQuery(params.Merge(params.FromQuery(r.URL.Query(), query.ParamAllData), body))
	if err != nil {
		a.fail(w, r, RouteAutocomplete, err)
		return
	}
	a.autocomplete(w, r, q)
}

func (a *API) autocomplete(w http.ResponseWriter, r *http.Request, q model.CanonicalQuery) {
	ctx := mylog.WithDataset(r.Context(), q.Scope.Dataset())
	places, err := a.search.Autocomplete(ctx, q)
	if err != nil {
		a.fail(w, r.WithContext(ctx), RouteAutocomplete, err)
		return
	}
	render.OK(w, model.NewAutocompleteResponse(q.Text, places))
}
