package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/util"
)

const (
	validateTimeout = 180 * time.Second
	readTimeout     = 15 * time.Second
)

// Validate runs the full pipeline for a stored product.
func (h *Handle) Validate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, validateTimeout))
	defer cancel()

	res, err := h.svc.ValidateProduct(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handle) Report(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, readTimeout))
	defer cancel()

	rep, err := h.reports.ProductReport(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type PreValidateRequest struct {
	compliance.Listing
	ImagesB64 []string `json:"images_b64"`
}

// PreValidate checks an unsaved listing with inline base64 images.
func (h *Handle) PreValidate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req PreValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	images := make([]ocr.Image, 0, len(req.ImagesB64))
	for i, s := range req.ImagesB64 {
		data, hint, err := util.DecodeBase64MaybeDataURL(s)
		if err != nil || len(data) == 0 {
			writeError(w, http.StatusBadRequest, "bad images_b64["+strconv.Itoa(i)+"]")
			return
		}
		images = append(images, ocr.Image{
			ID:   int64(i + 1),
			MIME: util.PickMIME("", hint, data),
			Data: data,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, validateTimeout))
	defer cancel()

	res, err := h.svc.PreValidate(ctx, req.Listing, images)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info("listing pre-validated",
		zap.String("title", req.Title),
		zap.Bool("can_upload", res.CanUpload),
		zap.Float64("readiness", res.ReadinessScore))
	writeJSON(w, http.StatusOK, res)
}
