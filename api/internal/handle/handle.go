// Package handle exposes the compliance pipeline over HTTP.
package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/entity"
	"labelcheck/api/internal/fields"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/rules"
	"labelcheck/api/internal/store"
)

type Validator interface {
	ValidateProduct(ctx context.Context, productID string) (*compliance.Result, error)
	PreValidate(ctx context.Context, l compliance.Listing, images []ocr.Image) (compliance.PreResult, error)
}

type Refresher interface {
	RefreshAll(ctx context.Context) (entity.Summary, error)
}

// Reports is the read side of stored validations.
type Reports interface {
	ProductReport(ctx context.Context, productID string) (*store.Report, error)
	Violations(ctx context.Context, limit int) ([]store.ValidationRow, error)
	Stats(ctx context.Context) (*store.Stats, error)
	Dashboard(ctx context.Context) (*store.Dashboard, error)
	EachViolation(ctx context.Context, fn func(store.ExportRow) error) error
}

type Entities interface {
	List(ctx context.Context, t entity.Type) ([]entity.Entity, error)
	Search(ctx context.Context, q string, t entity.Type) ([]entity.Entity, error)
	Get(ctx context.Context, id int64) (*store.EntityDetail, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Validator Validator
	Refresher Refresher
	Reports   Reports
	Entities  Entities
	DB        Pinger
	Extractor *fields.Extractor
	Rules     *rules.Engine
	Log       *zap.Logger
}

type Handle struct {
	svc       Validator
	refresher Refresher
	reports   Reports
	entities  Entities
	db        Pinger
	extractor *fields.Extractor
	rules     *rules.Engine
	log       *zap.Logger
}

func New(d Deps) *Handle {
	h := &Handle{
		svc:       d.Validator,
		refresher: d.Refresher,
		reports:   d.Reports,
		entities:  d.Entities,
		db:        d.DB,
		extractor: d.Extractor,
		rules:     d.Rules,
		log:       d.Log,
	}
	if h.extractor == nil {
		h.extractor = fields.New()
	}
	if h.rules == nil {
		h.rules = rules.NewDefault()
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// Routes registers every endpoint on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/products/{id}/validate", h.Validate)
	mux.HandleFunc("/v1/products/{id}/report", h.Report)
	mux.HandleFunc("/v1/prevalidate", h.PreValidate)

	mux.HandleFunc("/v1/fields/extract", h.ExtractFields)
	mux.HandleFunc("/v1/rules/validate", h.ValidateRules)

	mux.HandleFunc("/v1/entities/refresh", h.RefreshEntities)
	mux.HandleFunc("/v1/entities/search", h.SearchEntities)
	mux.HandleFunc("/v1/entities/{id}", h.Entity)
	mux.HandleFunc("/v1/entities", h.ListEntities)

	mux.HandleFunc("/v1/validations/violations", h.Violations)
	mux.HandleFunc("/v1/validations/stats", h.Stats)
	mux.HandleFunc("/v1/dashboard/summary", h.Dashboard)
	mux.HandleFunc("/v1/export/violations", h.ExportViolations)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeError(w, http.StatusMethodNotAllowed, method+" only")
	return false
}

// deadline reads X-Request-Timeout (seconds), then ?timeoutSec=, else def.
func deadline(r *http.Request, def time.Duration) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if v, _ := strconv.Atoi(ts); v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}

// fail maps err to a status code and logs anything that is not the
// caller's fault.
func (h *Handle) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, compliance.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "canceled")
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
