// Package workqueue reads the ordered JSONL work queue and reconstructs the
// set of already-completed keys from the outcome log.
package workqueue

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// maxLineBytes bounds a single work-queue line. Prompt payloads can be large
// but a line past this size is treated as malformed.
const maxLineBytes = 16 * 1024 * 1024

// Loader reads work items from a JSONL file. Malformed individual lines are
// skipped with a warning; an unreadable file is fatal.
type Loader struct {
	logger    *slog.Logger
	validator *Validator
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithValidator enables JSON-Schema validation of each item's request payload.
func WithValidator(v *Validator) LoaderOption {
	return func(l *Loader) { l.validator = v }
}

// NewLoader creates a Loader. logger is required.
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		panic("workqueue: logger is required")
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the full work queue at path, preserving input order. Lines that
// fail to decode or validate are skipped with a warning. Duplicate keys keep
// the first occurrence.
func (l *Loader) Load(ctx context.Context, path string) ([]model.WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOf(err, "open work queue %s", path)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	var items []model.WorkItem
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var item model.WorkItem
		if err := json.Unmarshal(line, &item); err != nil {
			l.logger.WarnContext(ctx, "skipping invalid work queue line",
				"path", path, "line", lineNum, "error", err)
			continue
		}
		if err := item.Validate(); err != nil {
			l.logger.WarnContext(ctx, "skipping incomplete work item",
				"path", path, "line", lineNum, "key", item.Key, "error", err)
			continue
		}
		if l.validator != nil {
			if err := l.validator.Validate(line); err != nil {
				l.logger.WarnContext(ctx, "skipping work item failing schema validation",
					"path", path, "line", lineNum, "key", item.Key, "error", err)
				continue
			}
		}
		if _, dup := seen[item.Key]; dup {
			l.logger.WarnContext(ctx, "skipping duplicate work item key",
				"path", path, "line", lineNum, "key", item.Key)
			continue
		}
		seen[item.Key] = struct{}{}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf(err, "read work queue %s", path)
	}
	return items, nil
}

// CompletedKeys scans the outcome log at path and returns every key holding
// at least one success record. A key with only error records stays eligible
// for resubmission. A missing log yields an empty set.
func CompletedKeys(ctx context.Context, logger *slog.Logger, path string) (map[string]struct{}, error) {
	completed := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return completed, nil
		}
		return nil, apperrors.IOf(err, "open outcome log %s", path)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.OutcomeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.WarnContext(ctx, "skipping invalid outcome log line",
				"path", path, "line", lineNum, "error", err)
			continue
		}
		// Header lines decode with an empty key and are ignored. Any record
		// carrying a key and no error marks that key complete.
		if rec.Key != "" && rec.Error == nil {
			completed[rec.Key] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf(err, "read outcome log %s", path)
	}
	return completed, nil
}

// Remaining filters items down to those whose key is not in completed,
// preserving the original order.
func Remaining(items []model.WorkItem, completed map[string]struct{}) []model.WorkItem {
	remaining := make([]model.WorkItem, 0, len(items))
	for _, item := range items {
		if _, done := completed[item.Key]; done {
			continue
		}
		remaining = append(remaining, item)
	}
	return remaining
}
