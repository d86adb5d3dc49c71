package model

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the submission state of a batch.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type BatchStatus string

const (
	// StatusNotSubmitted indicates the batch has never been handed to the service.
	StatusNotSubmitted BatchStatus = "not_submitted"
	// StatusSubmitted indicates the service accepted the batch and assigned a handle.
	StatusSubmitted BatchStatus = "submitted"
	// StatusProcessing indicates the service reported the batch as still in flight.
	StatusProcessing BatchStatus = "processing"
	// StatusEnded indicates the service finished the batch; results are retrievable.
	StatusEnded BatchStatus = "ended"
)

// Valid returns true if the BatchStatus is one of the known states.
func (s BatchStatus) Valid() bool {
	return s == StatusNotSubmitted || s == StatusSubmitted || s == StatusProcessing || s == StatusEnded
}

// Terminal reports whether no further polling is required for this status.
func (s BatchStatus) Terminal() bool {
	return s == StatusEnded
}

// UnmarshalText implements encoding.TextUnmarshaler so ledger replay accepts
// any casing a previous writer used.
func (s *BatchStatus) UnmarshalText(text []byte) error {
	v := BatchStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid BatchStatus: %q", string(text))
	}
	*s = v
	return nil
}

// BatchKey derives the deterministic identifier for the chunk at the given
// ordinal of the given source. The key is purely a function of input identity
// and position so the same logical batch produces the same key across
// restarts, before any external handle exists.
func BatchKey(sourceID string, ordinal int) string {
	return fmt.Sprintf("%s_batch_%d", sourceID, ordinal)
}

// BatchDescriptor is one durable snapshot of batch metadata. Descriptors are
// appended to the ledger on first submission and again on every status
// change; the most recent snapshot per batch key is authoritative.
type BatchDescriptor struct {
	ExternalHandle string      `json:"external_handle"`
	BatchKey       string      `json:"batch_key"`
	BatchNum       int         `json:"batch_num"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	Status         BatchStatus `json:"status"`
}

// Batch is a bounded-size, ordered chunk of work items submitted together.
type Batch struct {
	Key   string
	Num   int
	Items []WorkItem
}
