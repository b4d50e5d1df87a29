// Package openai is an assess.Assessor over the OpenAI chat completions API
// in JSON mode.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"labelcheck/api/internal/assess"
)

const DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

const systemPrompt = `You assess product labels for Indian Legal Metrology compliance. Reply with one JSON object only.`

type Engine struct {
	APIKey   string
	Model    string
	Endpoint string
	httpc    *http.Client

	attempts  int
	retryBase time.Duration
}

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   16,
	}
	return &Engine{
		APIKey:    strings.TrimSpace(key),
		Model:     strings.TrimSpace(model),
		Endpoint:  DefaultEndpoint,
		httpc:     &http.Client{Transport: tr},
		attempts:  3,
		retryBase: 300 * time.Millisecond,
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return "openai" }
func (e *Engine) GetModel() string { return e.Model }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *Engine) Assess(ctx context.Context, p assess.ProductInfo, corpus string) assess.Outcome {
	if e.APIKey == "" {
		return assess.Failed(errors.New("OPENAI_API_KEY is empty"))
	}
	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": systemPrompt},
			map[string]any{"role": "user", "content": assess.BuildPrompt(p, corpus)},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, _ := json.Marshal(body)

	var text string
	op := func() error {
		t, err := e.call(ctx, payload)
		if err != nil {
			return err
		}
		text = t
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retryBase
	retry := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.attempts-1)), ctx)
	if err := backoff.Retry(op, retry); err != nil {
		return assess.Failed(fmt.Errorf("openai: %w", err))
	}
	return assess.Decode(text)
}

func (e *Engine) call(ctx context.Context, payload []byte) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("openai %d: %s", resp.StatusCode, truncateBytes(raw, 512))
		// client errors other than rate limiting will not improve on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("openai: bad envelope: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
