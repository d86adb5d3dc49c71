// Package ledger persists batch metadata snapshots to an append-only JSONL
// log. The log is the authoritative record for resuming in-flight batches:
// it is never compacted or rewritten, and the most recent snapshot per batch
// key wins on replay.
package ledger

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// Ledger appends batch descriptor snapshots to a durable log file and replays
// the full log on demand. Append-only by construction; duplicate or
// out-of-order entries are legal and resolved last-write-wins on load.
type Ledger struct {
	path   string
	f      *os.File
	logger *slog.Logger
}

// Open opens the ledger at path for appending, creating the file if it does
// not exist. The file stays open until Close.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		panic("ledger: logger is required")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.IOf(err, "open batch ledger %s", path)
	}
	return &Ledger{path: path, f: f, logger: logger}, nil
}

// Append durably writes one descriptor snapshot. The write hits the file
// before the call returns; there is no buffering layer.
func (l *Ledger) Append(d model.BatchDescriptor) error {
	line, err := json.Marshal(d)
	if err != nil {
		return apperrors.IOf(err, "encode ledger entry for %s", d.BatchKey)
	}
	if _, err := l.f.Write(append(line, '\n')); err != nil {
		return apperrors.IOf(err, "append ledger entry for %s", d.BatchKey)
	}
	return nil
}

// LoadAll replays the full log and returns the most recent snapshot per batch
// key. Unparseable lines are skipped with a warning; replay never fails on
// duplicates or ordering.
func (l *Ledger) LoadAll() (map[string]model.BatchDescriptor, error) {
	snapshots := make(map[string]model.BatchDescriptor)

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshots, nil
		}
		return nil, apperrors.IOf(err, "read batch ledger %s", l.path)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d model.BatchDescriptor
		if err := json.Unmarshal(line, &d); err != nil {
			l.logger.Warn("skipping invalid ledger line",
				"path", l.path, "line", lineNum, "error", err)
			continue
		}
		if d.BatchKey == "" {
			l.logger.Warn("skipping ledger line without batch key",
				"path", l.path, "line", lineNum)
			continue
		}
		snapshots[d.BatchKey] = d
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf(err, "scan batch ledger %s", l.path)
	}
	return snapshots, nil
}

// Close syncs and closes the underlying file.
func (l *Ledger) Close() error {
	if err := l.f.Sync(); err != nil {
		return apperrors.IOf(err, "sync batch ledger %s", l.path)
	}
	if err := l.f.Close(); err != nil {
		return apperrors.IOf(err, "close batch ledger %s", l.path)
	}
	return nil
}
