package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchOptions controls a batch scan.
type BatchOptions struct {
	// Concurrency bounds how many target pipelines run at once. Default: 10.
	Concurrency int
	// Save persists each successful result.
	Save bool
	// Limit caps how many targets run after exclusion filtering. Zero
	// means all.
	Limit int
	// Exclude drops targets whose path contains any of these substrings.
	Exclude []string
	// SkipExisting drops targets that already have a stored scan.
	SkipExisting bool
}

// Summary is the accounting for one batch run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Outcomes  []Outcome
	Elapsed   time.Duration
}

// RunBatch runs the pipeline over targets with bounded concurrency. Per
// spec of the store: each target's result is independent of the
// concurrency bound and of other targets' outcomes; a failed target never
// aborts the batch. The returned error is reserved for whole-batch
// conditions (cancellation).
func (p *Pipeline) RunBatch(ctx context.Context, targets []string, opts BatchOptions) (*Summary, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 10
	}

	summary := &Summary{RunID: uuid.New().String()}
	start := time.Now()

	log := zap.L().With(zap.String("run_id", summary.RunID))

	// Pre-flight filtering happens sequentially so the skip accounting and
	// the limit are deterministic.
	var runnable []string
	var skipped []Outcome
	for _, target := range targets {
		if excluded(target, opts.Exclude) {
			skipped = append(skipped, Outcome{Target: target, Identity: IdentityFor(target), Stage: StageSkipped})
			continue
		}
		if opts.SkipExisting && p.deps.Store != nil {
			ok, err := p.deps.Store.HasScan(ctx, IdentityFor(target))
			if err != nil {
				return nil, eris.Wrapf(err, "pipeline: check existing scan for %s", target)
			}
			if ok {
				skipped = append(skipped, Outcome{Target: target, Identity: IdentityFor(target), Stage: StageSkipped})
				continue
			}
		}
		if opts.Limit > 0 && len(runnable) >= opts.Limit {
			skipped = append(skipped, Outcome{Target: target, Identity: IdentityFor(target), Stage: StageSkipped})
			continue
		}
		runnable = append(runnable, target)
	}

	log.Info("batch starting",
		zap.Int("targets", len(runnable)),
		zap.Int("skipped", len(skipped)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("save", opts.Save),
	)

	outcomes := make([]Outcome, len(runnable))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, target := range runnable {
		g.Go(func() error {
			out := p.Run(gctx, target, opts.Save)
			outcomes[i] = out
			if out.Succeeded() {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			return nil // individual failures never abort the batch
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: batch")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: batch canceled")
	}

	summary.Outcomes = append(outcomes, skipped...)
	summary.Total = len(summary.Outcomes)
	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = len(skipped)
	summary.Elapsed = time.Since(start)

	log.Info("batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// excluded reports whether the target's path matches any exclusion
// substring.
func excluded(target string, patterns []string) bool {
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		if strings.Contains(target, pat) {
			return true
		}
	}
	return false
}
