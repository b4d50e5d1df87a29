package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"labelcheck/api/internal/metrics"
)

type Summary struct {
	TotalEntities int          `json:"total_entities"`
	ByType        map[Type]int `json:"by_type"`
}

// runTimeout bounds one shared refresh run.
const runTimeout = 10 * time.Minute

// Aggregator recomputes the entity table from the product table.
type Aggregator struct {
	store      Store
	log        *zap.Logger
	runTimeout time.Duration

	sf singleflight.Group
	mu sync.Mutex // held for the whole delete-then-insert

	cronMu sync.Mutex
	cron   *cron.Cron
}

func NewAggregator(store Store, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{store: store, log: log, runTimeout: runTimeout}
}

// RefreshAll rebuilds every entity. Callers arriving while a refresh is in
// flight wait for it and share its result. The run itself is detached from
// the caller's cancellation: a caller that gives up gets ctx.Err() while the
// run goes on for the others.
func (a *Aggregator) RefreshAll(ctx context.Context) (Summary, error) {
	ch := a.sf.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.runTimeout)
		defer cancel()
		return a.refresh(rctx)
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			a.log.Debug("entity refresh joined a run in flight")
		}
		if r.Err != nil {
			return Summary{}, r.Err
		}
		return r.Val.(Summary), nil
	}
}

func (a *Aggregator) refresh(ctx context.Context) (Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	var all []Entity
	byType := make(map[Type]int, len(Types))
	for _, t := range Types {
		parties, err := a.store.ListParties(ctx, t)
		if err != nil {
			metrics.EntityRefreshes.WithLabelValues("error").Inc()
			return Summary{}, fmt.Errorf("list %s parties: %w", t, err)
		}
		es := Aggregate(t, parties)
		byType[t] = len(es)
		all = append(all, es...)
	}

	n, err := a.store.ReplaceEntities(ctx, all)
	if err != nil {
		metrics.EntityRefreshes.WithLabelValues("error").Inc()
		return Summary{}, fmt.Errorf("replace entities: %w", err)
	}

	metrics.EntityRefreshes.WithLabelValues("ok").Inc()
	for t, c := range byType {
		metrics.Entities.WithLabelValues(string(t)).Set(float64(c))
	}
	a.log.Info("entities refreshed",
		zap.Int("total", n),
		zap.Int("manufacturers", byType[Manufacturer]),
		zap.Int("importers", byType[Importer]),
		zap.Int("packers", byType[Packer]),
		zap.Duration("took", time.Since(start)),
	)
	return Summary{TotalEntities: n, ByType: byType}, nil
}

// Schedule refreshes on the given cron spec until Stop. Standard five-field
// specs and descriptors such as "@every 6h" are accepted.
func (a *Aggregator) Schedule(spec string, timeout time.Duration) error {
	a.cronMu.Lock()
	defer a.cronMu.Unlock()
	if a.cron != nil {
		return fmt.Errorf("entity refresh already scheduled")
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if _, err := a.RefreshAll(ctx); err != nil {
			a.log.Error("scheduled entity refresh failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("entity refresh schedule %q: %w", spec, err)
	}
	c.Start()
	a.cron = c
	a.log.Info("entity refresh scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (a *Aggregator) Stop() {
	a.cronMu.Lock()
	defer a.cronMu.Unlock()
	if a.cron == nil {
		return
	}
	<-a.cron.Stop().Done()
	a.cron = nil
}
