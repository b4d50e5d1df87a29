// Package gemini is an assess.Assessor backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"labelcheck/api/internal/assess"
)

const systemInstruction = `You assess product labels for Indian Legal Metrology compliance.
Answer with a single JSON object and nothing else.`

type generateFunc func(ctx context.Context, prompt string) (string, error)

type Engine struct {
	APIKey string
	Model  string

	attempts  int
	retryBase time.Duration
	gen       generateFunc
}

func New(apiKey, model string) *Engine {
	e := &Engine{
		APIKey:    strings.TrimSpace(apiKey),
		Model:     strings.TrimSpace(model),
		attempts:  3,
		retryBase: 300 * time.Millisecond,
	}
	e.gen = e.generate
	return e
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Assess sends one prompt, retrying transient failures. It always returns an
// Outcome.
func (e *Engine) Assess(ctx context.Context, p assess.ProductInfo, corpus string) assess.Outcome {
	if e.APIKey == "" {
		return assess.Failed(errors.New("GEMINI_API_KEY is empty"))
	}
	prompt := assess.BuildPrompt(p, corpus)

	var text string
	op := func() error {
		t, err := e.gen(ctx, prompt)
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
		return assess.Failed(fmt.Errorf("gemini: %w", err))
	}
	return assess.Decode(text)
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", backoff.Permanent(fmt.Errorf("gemini: model is nil"))
	}
	// strictly JSON back
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
