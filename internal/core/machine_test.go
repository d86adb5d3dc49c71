package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
	"github.com/promptops/batchrelay/internal/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger is an in-memory LedgerStore recording every appended snapshot.
type fakeLedger struct {
	entries   []model.BatchDescriptor
	appendErr error
}

func (f *fakeLedger) Append(d model.BatchDescriptor) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, d)
	return nil
}

func (f *fakeLedger) LoadAll() (map[string]model.BatchDescriptor, error) {
	out := make(map[string]model.BatchDescriptor)
	for _, d := range f.entries {
		out[d.BatchKey] = d
	}
	return out, nil
}

// fakeSink is an in-memory OutcomeWriter with the same per-key success guard
// as the real sink.
type fakeSink struct {
	written   []model.ItemResult
	succeeded map[string]struct{}
	writeErr  error
}

func newFakeSink() *fakeSink {
	return &fakeSink{succeeded: make(map[string]struct{})}
}

func (f *fakeSink) WriteResult(res model.ItemResult) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, done := f.succeeded[res.Key]; done {
		return nil
	}
	f.written = append(f.written, res)
	if res.Succeeded() {
		f.succeeded[res.Key] = struct{}{}
	}
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func newTestMachine(svc BatchService, ledger LedgerStore, out OutcomeWriter) *Machine {
	return NewMachine(MachineOptions{
		Service: svc,
		Ledger:  ledger,
		Sink:    out,
		Logger:  testLogger(),
		Now:     fixedNow,
	})
}

func testBatch() model.Batch {
	return model.Batch{
		Key: "queue.jsonl_batch_0",
		Num: 0,
		Items: []model.WorkItem{
			{Key: "a", Payload: model.RequestPayload{Model: "m", Messages: []model.Message{{Role: "user", Content: "1"}}}},
			{Key: "b", Payload: model.RequestPayload{Model: "m", Messages: []model.Message{{Role: "user", Content: "2"}}}},
		},
	}
}

func TestMachine_Step_SubmitThenProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{}
	out := newFakeSink()
	m := newTestMachine(svc, ledger, out)

	batch := testBatch()
	svc.EXPECT().Submit(gomock.Any(), batch.Items).Return("msgbatch_01", model.StatusSubmitted, nil)
	svc.EXPECT().Poll(gomock.Any(), "msgbatch_01").Return(model.StatusProcessing, nil)

	known := map[string]model.BatchDescriptor{}
	status, err := m.Step(context.Background(), batch, known)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, status)

	// Submission snapshot then a processing snapshot.
	require.Len(t, ledger.entries, 2)
	assert.Equal(t, model.StatusSubmitted, ledger.entries[0].Status)
	assert.Equal(t, "msgbatch_01", ledger.entries[0].ExternalHandle)
	assert.Equal(t, fixedNow(), ledger.entries[0].SubmittedAt)
	assert.Equal(t, model.StatusProcessing, ledger.entries[1].Status)

	// The pass-local snapshot map sees the latest state.
	assert.Equal(t, model.StatusProcessing, known[batch.Key].Status)
	assert.Empty(t, out.written)
}

func TestMachine_Step_ResumeSkipsSubmission(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{}
	out := newFakeSink()
	m := newTestMachine(svc, ledger, out)

	batch := testBatch()
	known := map[string]model.BatchDescriptor{
		batch.Key: {
			ExternalHandle: "msgbatch_known",
			BatchKey:       batch.Key,
			Status:         model.StatusSubmitted,
		},
	}

	// No Submit expectation: a resubmission would fail the test.
	svc.EXPECT().Poll(gomock.Any(), "msgbatch_known").Return(model.StatusEnded, nil)
	svc.EXPECT().Retrieve(gomock.Any(), "msgbatch_known").Return([]model.ItemResult{
		{Key: "a", Response: &model.ResponseBody{ID: "msg_a"}},
		{Key: "b", Error: &model.ErrorDetail{StatusCode: 500, Type: "errored", Message: "boom"}},
	}, nil)

	status, err := m.Step(context.Background(), batch, known)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnded, status)

	require.Len(t, out.written, 2)
	assert.Equal(t, "a", out.written[0].Key)
	assert.Equal(t, "b", out.written[1].Key)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, model.StatusEnded, ledger.entries[0].Status)
}

func TestMachine_Step_EndedInLedgerIsPolledAgain(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{}
	out := newFakeSink()
	out.succeeded["a"] = struct{}{}
	out.succeeded["b"] = struct{}{}
	m := newTestMachine(svc, ledger, out)

	batch := testBatch()
	known := map[string]model.BatchDescriptor{
		batch.Key: {ExternalHandle: "msgbatch_done", BatchKey: batch.Key, Status: model.StatusEnded},
	}

	// Ledger status is advisory only: the machine confirms with the service
	// and re-retrieves; the sink guard absorbs the duplicates.
	svc.EXPECT().Poll(gomock.Any(), "msgbatch_done").Return(model.StatusEnded, nil)
	svc.EXPECT().Retrieve(gomock.Any(), "msgbatch_done").Return([]model.ItemResult{
		{Key: "a", Response: &model.ResponseBody{ID: "msg_a"}},
		{Key: "b", Response: &model.ResponseBody{ID: "msg_b"}},
	}, nil)

	status, err := m.Step(context.Background(), batch, known)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnded, status)
	assert.Empty(t, out.written)
}

func TestMachine_Step_SubmitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{}
	m := newTestMachine(svc, ledger, newFakeSink())

	batch := testBatch()
	svc.EXPECT().Submit(gomock.Any(), batch.Items).Return("", model.BatchStatus(""), errors.New("overloaded"))

	known := map[string]model.BatchDescriptor{}
	status, err := m.Step(context.Background(), batch, known)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSubmission, apperrors.CodeOf(err))
	assert.Equal(t, model.StatusNotSubmitted, status)

	// Nothing persisted: the batch stays unsubmitted and is retried on the
	// next run.
	assert.Empty(t, ledger.entries)
	assert.NotContains(t, known, batch.Key)
}

func TestMachine_Step_PollFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{}
	m := newTestMachine(svc, ledger, newFakeSink())

	batch := testBatch()
	svc.EXPECT().Submit(gomock.Any(), batch.Items).Return("msgbatch_02", model.StatusSubmitted, nil)
	svc.EXPECT().Poll(gomock.Any(), "msgbatch_02").Return(model.BatchStatus(""), errors.New("timeout"))

	known := map[string]model.BatchDescriptor{}
	_, err := m.Step(context.Background(), batch, known)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeService, apperrors.CodeOf(err))

	// The submission itself was persisted, so the next run resumes by
	// polling rather than resubmitting.
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, model.StatusSubmitted, ledger.entries[0].Status)
}

func TestMachine_Step_RetrieveFailureLeavesBatchUnfinished(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{}
	m := newTestMachine(svc, ledger, newFakeSink())

	batch := testBatch()
	known := map[string]model.BatchDescriptor{
		batch.Key: {ExternalHandle: "msgbatch_03", BatchKey: batch.Key, Status: model.StatusProcessing},
	}
	svc.EXPECT().Poll(gomock.Any(), "msgbatch_03").Return(model.StatusEnded, nil)
	svc.EXPECT().Retrieve(gomock.Any(), "msgbatch_03").Return(nil, errors.New("stream reset"))

	_, err := m.Step(context.Background(), batch, known)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeService, apperrors.CodeOf(err))

	// No ENDED snapshot was written, so the next run retrieves again.
	assert.Empty(t, ledger.entries)
}

func TestMachine_Step_LedgerAppendFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockBatchService(ctrl)
	ledger := &fakeLedger{appendErr: apperrors.IO("append ledger", errors.New("disk full"))}
	m := newTestMachine(svc, ledger, newFakeSink())

	batch := testBatch()
	svc.EXPECT().Submit(gomock.Any(), batch.Items).Return("msgbatch_04", model.StatusSubmitted, nil)

	known := map[string]model.BatchDescriptor{}
	_, err := m.Step(context.Background(), batch, known)
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}
