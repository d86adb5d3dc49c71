package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// Machine drives a single batch through one step of its lifecycle per pass:
// submit (or recognize a previous submission), poll, and retrieve results
// once the service reports the batch ended.
//
// States: not_submitted -> submitted -> processing -> ended (terminal).
type Machine struct {
	service BatchService
	ledger  LedgerStore
	sink    OutcomeWriter
	logger  *slog.Logger
	now     func() time.Time
}

// MachineOptions configures a Machine. All fields are required except Now.
type MachineOptions struct {
	Service BatchService
	Ledger  LedgerStore
	Sink    OutcomeWriter
	Logger  *slog.Logger

	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewMachine creates a Machine, panicking on missing required dependencies.
func NewMachine(opts MachineOptions) *Machine {
	if opts.Service == nil || opts.Ledger == nil || opts.Sink == nil || opts.Logger == nil {
		panic("core: machine requires service, ledger, sink, and logger")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		service: opts.Service,
		ledger:  opts.Ledger,
		sink:    opts.Sink,
		logger:  opts.Logger,
		now:     now,
	}
}

// Step advances one batch. known is the ledger snapshot map for the current
// pass; Step updates it in place so later batches in the same pass see fresh
// state. It returns the batch's status after this step.
//
// A batch whose key already maps to a known external handle is never
// resubmitted; it proceeds straight to polling. A batch found ended in the
// ledger is still polled again; the ledger status is advisory, and duplicate
// retrieval is absorbed by the sink's per-key success guard.
func (m *Machine) Step(ctx context.Context, batch model.Batch, known map[string]model.BatchDescriptor) (model.BatchStatus, error) {
	desc, found := known[batch.Key]
	if found && desc.ExternalHandle != "" {
		m.logger.InfoContext(ctx, "found existing submission for batch",
			"batch_key", batch.Key, "handle", desc.ExternalHandle, "ledger_status", desc.Status)
	} else {
		submitted, err := m.submit(ctx, batch)
		if err != nil {
			return model.StatusNotSubmitted, err
		}
		desc = submitted
		known[batch.Key] = desc
	}

	status, err := m.service.Poll(ctx, desc.ExternalHandle)
	if err != nil {
		return desc.Status, apperrors.Service("poll batch "+desc.ExternalHandle, err)
	}
	m.logger.InfoContext(ctx, "batch status", "handle", desc.ExternalHandle, "status", status)

	if !status.Terminal() {
		desc.Status = model.StatusProcessing
		if err := m.ledger.Append(desc); err != nil {
			return desc.Status, err
		}
		known[batch.Key] = desc
		return model.StatusProcessing, nil
	}

	if err := m.retrieve(ctx, desc.ExternalHandle); err != nil {
		return desc.Status, err
	}

	desc.Status = model.StatusEnded
	if err := m.ledger.Append(desc); err != nil {
		return desc.Status, err
	}
	known[batch.Key] = desc
	return model.StatusEnded, nil
}

func (m *Machine) submit(ctx context.Context, batch model.Batch) (model.BatchDescriptor, error) {
	handle, status, err := m.service.Submit(ctx, batch.Items)
	if err != nil {
		return model.BatchDescriptor{}, apperrors.Submission("submit batch "+batch.Key, err)
	}
	if !status.Valid() {
		status = model.StatusSubmitted
	}
	desc := model.BatchDescriptor{
		ExternalHandle: handle,
		BatchKey:       batch.Key,
		BatchNum:       batch.Num,
		SubmittedAt:    m.now().UTC(),
		Status:         status,
	}
	m.logger.InfoContext(ctx, "submitted batch",
		"batch_key", batch.Key, "batch_num", batch.Num, "handle", handle, "items", len(batch.Items))
	if err := m.ledger.Append(desc); err != nil {
		return model.BatchDescriptor{}, err
	}
	return desc, nil
}

// retrieve pulls every item result for an ended batch and records each one.
// Per-item failures become durable failure records, never errors; a sink
// write failure is IO-level and aborts.
func (m *Machine) retrieve(ctx context.Context, handle string) error {
	m.logger.InfoContext(ctx, "retrieving results", "handle", handle)
	results, err := m.service.Retrieve(ctx, handle)
	if err != nil {
		return apperrors.Service("retrieve results for "+handle, err)
	}
	for _, res := range results {
		if !res.Succeeded() && res.Error != nil {
			m.logger.ErrorContext(ctx, "item failed",
				"key", res.Key, "error_type", res.Error.Type, "error", res.Error.Message)
		}
		if err := m.sink.WriteResult(res); err != nil {
			return err
		}
	}
	return nil
}
