// Package core provides the batch orchestration logic: chunking the remaining
// work queue, driving each batch through its submission state machine, and
// composing one end-to-end pass.
package core

import (
	"context"
	"time"

	"github.com/promptops/batchrelay/internal/domain/model"
)

// BatchService is the interface to the external batch processing service.
// The core never inspects the service's transport, auth, or rate-limit
// mechanics.
type BatchService interface {
	// Submit hands an ordered list of work items to the service and returns
	// the handle it assigned plus the initial processing status.
	Submit(ctx context.Context, items []model.WorkItem) (handle string, status model.BatchStatus, err error)

	// Poll returns the current processing status for a previously submitted
	// batch.
	Poll(ctx context.Context, handle string) (model.BatchStatus, error)

	// Retrieve returns the per-item results of an ended batch, one result per
	// submitted item.
	Retrieve(ctx context.Context, handle string) ([]model.ItemResult, error)
}

// LedgerStore persists batch descriptor snapshots. Append is durable before
// it returns; LoadAll replays the full log and resolves last-write-wins per
// batch key.
type LedgerStore interface {
	Append(d model.BatchDescriptor) error
	LoadAll() (map[string]model.BatchDescriptor, error)
}

// OutcomeWriter records one durable outcome per retrieved item result.
// Implementations are expected to be idempotent per key for success records.
type OutcomeWriter interface {
	WriteResult(res model.ItemResult) error
}

// MetricsSink receives pass-level counters and timings. Emission is best
// effort and must never block the pass.
type MetricsSink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}
