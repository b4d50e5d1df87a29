package handle

import (
	"encoding/json"
	"net/http"

	"labelcheck/api/internal/fields"
	"labelcheck/api/internal/rules"
)

type ExtractRequest struct {
	Text string `json:"text"`
}

type ExtractResponse struct {
	Fields map[string]string `json:"fields"`
}

func (h *Handle) ExtractFields(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ExtractResponse{Fields: h.extractor.Extract(req.Text).Strings()})
}

// RulesRequest carries either extracted fields or raw label text. Text is
// only extracted when Fields is empty.
type RulesRequest struct {
	Fields   map[string]string `json:"fields"`
	Text     string            `json:"text"`
	Category string            `json:"category"`
}

type RulesResponse struct {
	Fields   map[string]string `json:"fields"`
	Verdicts []rules.Verdict   `json:"verdicts"`
	Summary  rules.Summary     `json:"summary"`
}

func (h *Handle) ValidateRules(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req RulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	m := fields.FromStrings(req.Fields)
	if len(m) == 0 && req.Text != "" {
		m = h.extractor.Extract(req.Text)
	}
	vs := h.rules.ValidateAll(m, req.Category)
	writeJSON(w, http.StatusOK, RulesResponse{
		Fields:   m.Strings(),
		Verdicts: vs,
		Summary:  rules.Summarize(vs),
	})
}
