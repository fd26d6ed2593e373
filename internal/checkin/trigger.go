package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/solsticehq/solstice/internal/store"
)

const (
	defaultBatchSize   = 50
	defaultMaxParallel = 4
)

// Summary reports one trigger run.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type processor interface {
	Process(ctx context.Context, id string) (*Outcome, error)
}

// Trigger scans for due subscriptions and processes them concurrently. One
// subscription failing never stops the rest of the batch.
type Trigger struct {
	subs        *store.SubscriptionStore
	proc        processor
	batchSize   int
	maxParallel int
	logger      *slog.Logger
	now         func() time.Time
}

func NewTrigger(subs *store.SubscriptionStore, proc processor, logger *slog.Logger) *Trigger {
	return &Trigger{
		subs:        subs,
		proc:        proc,
		batchSize:   defaultBatchSize,
		maxParallel: defaultMaxParallel,
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes every due subscription and returns a summary plus the combined
// per-subscription errors. The summary is valid even when err is non-nil.
func (t *Trigger) Run(ctx context.Context) (Summary, error) {
	now := t.now().UTC()
	due, err := t.subs.ScanDue(now, t.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("scan due subscriptions: %w", err)
	}

	summary := Summary{Total: len(due)}
	if len(due) == 0 {
		t.logger.Info("check-in trigger: nothing due")
		return summary, nil
	}

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, t.maxParallel)
	for _, sub := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, perr := t.proc.Process(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if perr != nil {
				summary.Failed++
				errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", id, perr))
				t.logger.Error("check-in failed", "subscription_id", id, "error", perr)
			} else {
				summary.Succeeded++
			}
		}(sub.ID)
	}
	wg.Wait()

	t.logger.Info("check-in trigger finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, errs
}
