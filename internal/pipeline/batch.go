package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mentionlab/visibility-engine/internal/store"
)

// BatchOptions configures one scheduled batch pass.
type BatchOptions struct {
	// BatchSize bounds the number of businesses processed concurrently.
	BatchSize int

	// CatchMissed includes businesses whose scheduled window has already
	// passed instead of only the current window.
	CatchMissed bool
}

// BatchResult summarizes a batch pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ProcessDue runs the pipeline for every due business with a bounded
// worker pool. Individual run failures are counted, logged, and never
// abort the batch; a single slow business cannot starve the rest beyond
// its pool slot.
func (o *Orchestrator) ProcessDue(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = 5
	}

	due, err := o.store.ListDueBusinesses(ctx, store.DueFilter{
		Now:         time.Now().UTC(),
		CatchMissed: opts.CatchMissed,
		Limit:       200,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("batch pass starting",
		zap.Int("due", len(due)),
		zap.Int("batch_size", size),
		zap.Bool("catch_missed", opts.CatchMissed))

	result := &BatchResult{Processed: len(due)}
	if len(due) == 0 {
		return result, nil
	}

	var (
		g, gctx   = errgroup.WithContext(ctx)
		succeeded = make(chan struct{}, len(due))
	)
	g.SetLimit(size)

	for _, b := range due {
		g.Go(func() error {
			_, err := o.Run(gctx, b.ID, RunOptions{Caller: "scheduler"})
			if err != nil {
				zap.L().Warn("batch run failed",
					zap.String("business_id", b.ID),
					zap.Error(err))
				return nil
			}
			succeeded <- struct{}{}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	close(succeeded)

	for range succeeded {
		result.Succeeded++
	}
	result.Failed = result.Processed - result.Succeeded

	zap.L().Info("batch pass complete",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}
