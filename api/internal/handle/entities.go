package handle

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"labelcheck/api/internal/entity"
)

const refreshTimeout = 5 * time.Minute

// entityType parses ?type=, defaulting to manufacturer.
func entityType(r *http.Request) (entity.Type, bool) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type")))
	if raw == "" {
		return entity.Manufacturer, true
	}
	for _, t := range entity.Types {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

type EntityList struct {
	Type     entity.Type     `json:"entity_type"`
	Entities []entity.Entity `json:"entities"`
	Total    int             `json:"total"`
}

func (h *Handle) RefreshEntities(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, refreshTimeout))
	defer cancel()

	sum, err := h.refresher.RefreshAll(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handle) ListEntities(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	t, ok := entityType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown entity type")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	es, err := h.entities.List(ctx, t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntityList{Type: t, Entities: es, Total: len(es)})
}

func (h *Handle) SearchEntities(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	t, ok := entityType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown entity type")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	es, err := h.entities.Search(ctx, q, t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntityList{Type: t, Entities: es, Total: len(es)})
}

func (h *Handle) Entity(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad entity id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	d, err := h.entities.Get(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
