package handle

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"labelcheck/api/internal/store"
)

const (
	defaultViolations = 100
	maxViolations     = 1000
	exportTimeout     = 2 * time.Minute
)

type ViolationList struct {
	Violations []store.ValidationRow `json:"violations"`
	Total      int                   `json:"total"`
}

func (h *Handle) Violations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit := defaultViolations
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = min(n, maxViolations)
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	vs, err := h.reports.Violations(ctx, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ViolationList{Violations: vs, Total: len(vs)})
}

func (h *Handle) Stats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	s, err := h.reports.Stats(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handle) Dashboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	d, err := h.reports.Dashboard(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ExportViolations streams every failed verdict as CSV. Once the header is
// written a failure can only be logged.
func (h *Handle) ExportViolations(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, exportTimeout))
	defer cancel()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="violations_report.csv"`)
	cw := csv.NewWriter(w)
	if err := cw.Write(store.ExportHeader); err != nil {
		return
	}
	rows := 0
	err := h.reports.EachViolation(ctx, func(e store.ExportRow) error {
		rows++
		return cw.Write(e.Record())
	})
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	if err != nil {
		h.log.Error("violation export aborted", zap.Int("rows", rows), zap.Error(err))
	}
}
