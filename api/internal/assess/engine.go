package assess

import (
	"context"
	"fmt"
	"strings"
	"time"

	cb "github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Engines struct {
	Gemini Assessor
	OpenAI Assessor
}

func (e *Engines) Get(name string) (Assessor, error) {
	var a Assessor
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		a = e.Gemini
	case "gpt", "openai":
		a = e.OpenAI
	default:
		return nil, fmt.Errorf("unknown ai engine %q; use 'gemini' or 'openai'", name)
	}
	if a == nil {
		return nil, fmt.Errorf("ai engine %q is not configured", name)
	}
	return a, nil
}

// BreakerSettings tunes WithBreaker.
type BreakerSettings struct {
	// Trips after this many consecutive service errors.
	MaxFailures uint32
	// Open-state duration before a trial call is let through.
	Cooldown time.Duration
}

type breaker struct {
	next Assessor
	cb   *cb.CircuitBreaker
}

// WithBreaker wraps a with a circuit breaker. Service errors count as
// failures; parse failures do not. While open, Assess returns a ServiceError
// without calling a.
func WithBreaker(a Assessor, s BreakerSettings, log *zap.Logger) Assessor {
	if log == nil {
		log = zap.NewNop()
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	settings := cb.Settings{
		Name:        "assess-" + a.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts cb.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to cb.State) {
			log.Warn("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &breaker{next: a, cb: cb.NewCircuitBreaker(settings)}
}

func (b *breaker) Name() string { return b.next.Name() }

func (b *breaker) Assess(ctx context.Context, p ProductInfo, corpus string) Outcome {
	res, err := b.cb.Execute(func() (interface{}, error) {
		o := b.next.Assess(ctx, p, corpus)
		if o.Kind == ServiceError {
			return o, o.Err
		}
		return o, nil
	})
	if o, ok := res.(Outcome); ok {
		return o
	}
	if err == nil {
		err = fmt.Errorf("assess: empty breaker result")
	}
	return Failed(fmt.Errorf("%s: %w", b.next.Name(), err))
}
