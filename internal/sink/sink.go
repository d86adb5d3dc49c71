// Package sink appends per-item outcome records to the durable outcome log.
// Writes are append-only with no read-modify-write step; the sink also guards
// against duplicate success records so a crash between result retrieval and
// ledger update cannot double-record a key on resume.
package sink

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// Options configures opening an outcome log.
type Options struct {
	// Replace truncates any existing log and writes a fresh header.
	Replace bool
	// Source is the work queue path recorded in the header of a new log.
	Source string
	// TotalItems is the queue size recorded in the header of a new log.
	TotalItems int
	// Completed seeds the success-key guard with keys already holding a
	// success record in the existing log.
	Completed map[string]struct{}
	// Logger is required.
	Logger *slog.Logger
}

// Sink writes outcome records to the log file. Not safe for concurrent use;
// the orchestrator writes strictly sequentially.
type Sink struct {
	path      string
	f         *os.File
	logger    *slog.Logger
	succeeded map[string]struct{}
}

// Open opens (or creates) the outcome log at path. A log created here, or
// truncated via Replace, gets a header line identifying the source queue and
// this run before any records are written.
func Open(path string, opts Options) (*Sink, error) {
	if opts.Logger == nil {
		panic("sink: logger is required")
	}

	_, statErr := os.Stat(path)
	creating := opts.Replace || os.IsNotExist(statErr)

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if opts.Replace {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, apperrors.IOf(err, "open outcome log %s", path)
	}

	succeeded := make(map[string]struct{}, len(opts.Completed))
	if !opts.Replace {
		for k := range opts.Completed {
			succeeded[k] = struct{}{}
		}
	}

	s := &Sink{path: path, f: f, logger: opts.Logger, succeeded: succeeded}
	if creating {
		header := model.OutputHeader{
			Header:     "Output for " + opts.Source,
			Source:     opts.Source,
			Timestamp:  time.Now().UTC(),
			TotalItems: opts.TotalItems,
			RunID:      uuid.NewString(),
		}
		if err := s.writeLine(header); err != nil {
			f.Close() //nolint:errcheck // surfacing the write error
			return nil, err
		}
	}
	return s, nil
}

// Write appends exactly one outcome record for an item result. Records for a
// key that already holds a success record are skipped, making result
// retrieval idempotent per key across reruns.
func (s *Sink) Write(rec model.OutcomeRecord) error {
	if _, done := s.succeeded[rec.Key]; done {
		s.logger.Debug("skipping outcome for already-successful key", "key", rec.Key)
		return nil
	}
	if err := s.writeLine(rec); err != nil {
		return err
	}
	if rec.Error == nil {
		s.succeeded[rec.Key] = struct{}{}
	}
	return nil
}

// WriteResult converts a retrieved item result into an outcome record and
// appends it.
func (s *Sink) WriteResult(res model.ItemResult) error {
	rec := model.OutcomeRecord{Key: res.Key}
	if res.Succeeded() {
		rec.ID = &res.Response.ID
		rec.Response = res.Response
	} else {
		rec.Error = res.Error
		if rec.Error == nil {
			// A result that neither succeeded nor carried an error descriptor
			// still gets a durable failure record.
			rec.Error = &model.ErrorDetail{
				StatusCode: 500,
				Type:       "unknown",
				Message:    "result carried no response and no error",
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			}
		}
	}
	return s.Write(rec)
}

// HasSuccess reports whether key already holds a success record, either from
// a previous run or from a write during this one.
func (s *Sink) HasSuccess(key string) bool {
	_, ok := s.succeeded[key]
	return ok
}

func (s *Sink) writeLine(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return apperrors.IOf(err, "encode outcome record")
	}
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		return apperrors.IOf(err, "append to outcome log %s", s.path)
	}
	return nil
}

// Close syncs and closes the log file.
func (s *Sink) Close() error {
	if err := s.f.Sync(); err != nil {
		return apperrors.IOf(err, "sync outcome log %s", s.path)
	}
	if err := s.f.Close(); err != nil {
		return apperrors.IOf(err, "close outcome log %s", s.path)
	}
	return nil
}
