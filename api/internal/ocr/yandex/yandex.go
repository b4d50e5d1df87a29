// Package yandex is a Yandex Cloud OCR recognizer. It returns text only; the
// API reports no labels, objects or usable confidence.
package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"labelcheck/api/internal/ocr"
	"labelcheck/api/internal/util"
)

const DefaultOCREndpoint = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

type Engine struct {
	iamc     *IamClient
	folderID string
	endpoint string
	httpc    *http.Client

	// Langs are passed as languageCodes; labels here are mostly English.
	Langs []string
	Model string
}

func New(oauthToken, folderID string) *Engine {
	return &Engine{
		iamc:     NewIamClient(oauthToken),
		folderID: folderID,
		endpoint: DefaultOCREndpoint,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		Langs:    []string{"en"},
		Model:    "page",
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG" | "PDF"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["en"]
	Model         string   `json:"model,omitempty"`         // "page" | "handwritten"
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text,omitempty"`
		} `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (r *response) textAnnotation() *textAnnotation {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.TextAnnotation
}

func (e *Engine) Recognize(ctx context.Context, img ocr.Image) (ocr.Result, error) {
	if e.folderID == "" {
		return ocr.Empty(), errors.New("YC_FOLDER_ID is empty")
	}
	data, err := img.Bytes()
	if err != nil {
		return ocr.Empty(), err
	}
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return ocr.Empty(), err
	}
	payload, _ := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(data),
		MimeType:      util.SniffMimeForOCR(data),
		LanguageCodes: e.Langs,
		Model:         e.Model,
	})

	resp, err := e.post(ctx, payload, iamToken)
	if err != nil {
		return ocr.Empty(), err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// one retry with a fresh token
		resp.Body.Close()
		e.iamc.Invalidate()
		if iamToken, err = e.iamc.Token(ctx); err != nil {
			return ocr.Empty(), err
		}
		if resp, err = e.post(ctx, payload, iamToken); err != nil {
			return ocr.Empty(), err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ocr.Empty(), fmt.Errorf("yandex ocr %d: %s", resp.StatusCode, string(x))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Empty(), err
	}
	res := ocr.Empty()
	ta := out.textAnnotation()
	if ta == nil {
		return res, nil
	}
	if t := strings.TrimSpace(ta.FullText); t != "" {
		res.Text = t
		return res, nil
	}
	// fallback: lines
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	res.Text = strings.Join(lines, "\n")
	return res, nil
}

func (e *Engine) post(ctx context.Context, payload []byte, iamToken string) (*http.Response, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+iamToken)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}
