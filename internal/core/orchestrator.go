package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
	"github.com/promptops/batchrelay/internal/workqueue"
)

// Options configures an Orchestrator.
type Options struct {
	Service BatchService
	Ledger  LedgerStore
	Sink    OutcomeWriter
	Logger  *slog.Logger

	// BatchSize is the maximum number of items per submitted batch.
	BatchSize int
	// Sleep is an optional fixed delay between batches.
	Sleep time.Duration
	// ContinueOnError keeps the pass going past submission and poll
	// failures; IO failures abort regardless.
	ContinueOnError bool

	// Metrics receives pass counters. Optional.
	Metrics MetricsSink

	// Now overrides the clock for tests.
	Now func() time.Time
}

// PassInput is the precomputed input to one pass: the full loaded queue and
// the keys already completed according to the outcome log.
type PassInput struct {
	// SourceID identifies the work queue; batch keys derive from it.
	SourceID string
	// Items is the full ordered work queue.
	Items []model.WorkItem
	// Completed holds keys with an existing success record.
	Completed map[string]struct{}
}

// PassSummary reports what one pass did.
type PassSummary struct {
	TotalItems     int
	CompletedItems int
	RemainingItems int
	Batches        int
	Skipped        int
	Ended          int
	Processing     int
	BatchErrors    int
}

// Orchestrator composes one end-to-end pass: compute the remaining work,
// chunk it, and drive every batch through the submission state machine,
// strictly sequentially. Batches still processing at pass end require a
// subsequent invocation.
type Orchestrator struct {
	opts    Options
	machine *Machine
}

// New creates an Orchestrator, panicking on missing required dependencies.
func New(opts Options) *Orchestrator {
	if opts.BatchSize < 1 {
		panic("core: batch size must be positive")
	}
	machine := NewMachine(MachineOptions{
		Service: opts.Service,
		Ledger:  opts.Ledger,
		Sink:    opts.Sink,
		Logger:  opts.Logger,
		Now:     opts.Now,
	})
	return &Orchestrator{opts: opts, machine: machine}
}

// RunPass executes one full pass over the input. Fatal conditions (IO errors,
// or any batch error when continue-on-error is off) abort immediately; other
// batch-level errors are counted, logged, and isolated to their batch.
func (o *Orchestrator) RunPass(ctx context.Context, in PassInput) (PassSummary, error) {
	logger := o.opts.Logger
	start := time.Now()

	remaining := workqueue.Remaining(in.Items, in.Completed)
	summary := PassSummary{
		TotalItems:     len(in.Items),
		CompletedItems: len(in.Items) - len(remaining),
		RemainingItems: len(remaining),
	}
	logger.InfoContext(ctx, "pass starting",
		"source", in.SourceID,
		"total_items", summary.TotalItems,
		"completed_items", summary.CompletedItems,
		"remaining_items", summary.RemainingItems)

	// Chunk the full queue, not the remaining subset. Ordinals must line up
	// with earlier runs so a half-finished batch is found under the same key
	// after a restart; fully completed batches are skipped below instead.
	batches := Chunk(in.SourceID, in.Items, o.opts.BatchSize)
	summary.Batches = len(batches)

	known, err := o.opts.Ledger.LoadAll()
	if err != nil {
		return summary, err
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return summary, apperrors.Service("pass interrupted", err)
		}

		if pendingCount(batch, in.Completed) == 0 {
			summary.Skipped++
			logger.DebugContext(ctx, "batch already complete", "batch_key", batch.Key)
			continue
		}

		status, err := o.machine.Step(ctx, batch, known)
		switch {
		case err == nil:
		case apperrors.IsFatal(err) || !o.opts.ContinueOnError:
			return summary, err
		default:
			summary.BatchErrors++
			logger.ErrorContext(ctx, "batch error",
				"batch_key", batch.Key, "code", apperrors.CodeOf(err), "error", err)
		}

		switch status {
		case model.StatusEnded:
			summary.Ended++
		case model.StatusProcessing:
			summary.Processing++
		}

		if o.opts.Sleep > 0 && i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return summary, apperrors.Service("pass interrupted", ctx.Err())
			case <-time.After(o.opts.Sleep):
			}
		}
	}

	logger.InfoContext(ctx, "pass finished",
		"batches", summary.Batches,
		"skipped", summary.Skipped,
		"ended", summary.Ended,
		"still_processing", summary.Processing,
		"batch_errors", summary.BatchErrors)
	o.emit(in.SourceID, summary, time.Since(start))
	return summary, nil
}

func (o *Orchestrator) emit(sourceID string, summary PassSummary, elapsed time.Duration) {
	if o.opts.Metrics == nil {
		return
	}
	tags := map[string]string{"source": sourceID}
	o.opts.Metrics.Count("batches.ended", int64(summary.Ended), tags)
	o.opts.Metrics.Count("batches.processing", int64(summary.Processing), tags)
	o.opts.Metrics.Count("batches.errors", int64(summary.BatchErrors), tags)
	o.opts.Metrics.Count("items.remaining", int64(summary.RemainingItems), tags)
	o.opts.Metrics.Timing("pass.duration", elapsed, tags)
}

func pendingCount(batch model.Batch, completed map[string]struct{}) int {
	n := 0
	for _, item := range batch.Items {
		if _, ok := completed[item.Key]; !ok {
			n++
		}
	}
	return n
}
