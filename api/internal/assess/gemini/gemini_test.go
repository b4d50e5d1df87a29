package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelcheck/api/internal/assess"
)

func testEngine(gen generateFunc) *Engine {
	e := New("key", "gemini-2.5-flash")
	e.retryBase = time.Millisecond
	e.gen = gen
	return e
}

func TestAssess_Success(t *testing.T) {
	var prompt string
	e := testEngine(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "```json\n{\"compliance_score\": \"88\", \"final_grade\": \"A-\", \"violations\": []}\n```", nil
	})

	o := e.Assess(context.Background(), assess.ProductInfo{Title: "Acme Chips", Category: "Food"}, "MRP: ₹20")
	require.Equal(t, assess.Success, o.Kind)
	require.NotNil(t, o.Assessment.Score)
	assert.InDelta(t, 88.0, *o.Assessment.Score, 1e-9)
	assert.Equal(t, "A-", o.Assessment.Grade)
	assert.Contains(t, prompt, "Acme Chips")
	assert.Contains(t, prompt, "MRP: ₹20")
}

func TestAssess_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	e := testEngine(func(context.Context, string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 unavailable")
		}
		return `{"compliance_score": 91}`, nil
	})
	o := e.Assess(context.Background(), assess.ProductInfo{}, "")
	assert.Equal(t, assess.Success, o.Kind)
	assert.Equal(t, 3, calls)
}

func TestAssess_ServiceErrorAfterAttempts(t *testing.T) {
	calls := 0
	e := testEngine(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("quota exceeded")
	})
	o := e.Assess(context.Background(), assess.ProductInfo{}, "")
	assert.Equal(t, assess.ServiceError, o.Kind)
	assert.ErrorContains(t, o.Err, "quota exceeded")
	assert.Equal(t, 3, calls)

	r := o.Resolve()
	assert.Equal(t, "F", r.Grade)
	assert.Equal(t, assess.StatusError, r.Status)
}

func TestAssess_ParseFailure(t *testing.T) {
	e := testEngine(func(context.Context, string) (string, error) {
		return "I cannot help with that.", nil
	})
	o := e.Assess(context.Background(), assess.ProductInfo{}, "")
	assert.Equal(t, assess.ParseFailure, o.Kind)
}

func TestAssess_NoKey(t *testing.T) {
	e := New("", "m")
	o := e.Assess(context.Background(), assess.ProductInfo{}, "")
	assert.Equal(t, assess.ServiceError, o.Kind)
}
