// Command batchrelay submits a JSONL work queue to the Anthropic message
// batches API and records per-item outcomes durably. Reruns resume from the
// outcome log and batch ledger instead of resubmitting finished work.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/promptops/batchrelay/internal/adapters/anthropic"
	"github.com/promptops/batchrelay/internal/bootstrap"
	"github.com/promptops/batchrelay/internal/core"
	apperrors "github.com/promptops/batchrelay/internal/errors"
	"github.com/promptops/batchrelay/internal/ledger"
	"github.com/promptops/batchrelay/internal/observability/metrics"
	"github.com/promptops/batchrelay/internal/sink"
	"github.com/promptops/batchrelay/internal/workqueue"
)

type options struct {
	input       string
	output      string
	replace     bool
	stopOnError bool
	dryRun      bool
	verbose     bool
	batchSize   int
	sleep       time.Duration
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.input, "input", "", "input JSONL work queue path (required)")
	flag.StringVar(&opts.input, "i", "", "shorthand for -input")
	flag.StringVar(&opts.output, "output", "", "outcome log path (default: batch_<input>_output.jsonl next to the input)")
	flag.StringVar(&opts.output, "o", "", "shorthand for -output")
	flag.BoolVar(&opts.replace, "replace", false, "start over: truncate the outcome log instead of resuming")
	flag.BoolVar(&opts.stopOnError, "stop-on-error", false, "abort the run on the first batch-level error")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "load and count work, then exit without submitting")
	flag.BoolVar(&opts.verbose, "v", false, "enable debug logging")
	flag.IntVar(&opts.batchSize, "batch-size", 0, "maximum items per batch (overrides BATCH_SIZE)")
	flag.DurationVar(&opts.sleep, "sleep", -1, "delay between batches (overrides BATCH_SLEEP)")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := bootstrap.InitLogger(opts.verbose)
	if err := run(ctx, logger, opts); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err, "code", apperrors.CodeOf(err))
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

// outputPathFor derives the default outcome log path from the input path.
func outputPathFor(input string) (string, error) {
	if !strings.HasSuffix(input, ".jsonl") {
		return "", apperrors.Validationf("input file must be a JSONL file: %s", input)
	}
	dir, name := filepath.Split(input)
	name = "batch_" + strings.TrimSuffix(name, ".jsonl") + "_output.jsonl"
	return filepath.Join(dir, name), nil
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.input == "" {
		return apperrors.Validation("an input file is required, see -input")
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if opts.batchSize > 0 {
		cfg.Runner.BatchSize = opts.batchSize
	}
	if opts.sleep >= 0 {
		cfg.Runner.Sleep = opts.sleep
	}
	if opts.stopOnError {
		cfg.Runner.ContinueOnError = false
	}
	cfg.Runner.Sanitize()

	output := opts.output
	if output == "" {
		if output, err = outputPathFor(opts.input); err != nil {
			return err
		}
	}

	loaderOpts := []workqueue.LoaderOption{}
	if cfg.Runner.ValidateInput {
		validator, err := workqueue.NewValidator()
		if err != nil {
			return err
		}
		loaderOpts = append(loaderOpts, workqueue.WithValidator(validator))
	}
	items, err := workqueue.NewLoader(logger, loaderOpts...).Load(ctx, opts.input)
	if err != nil {
		return err
	}

	completed := map[string]struct{}{}
	if !opts.replace {
		if completed, err = workqueue.CompletedKeys(ctx, logger, output); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "work queue loaded",
		"input", opts.input,
		"output", output,
		"total_items", len(items),
		"completed_items", len(completed),
		"remaining_items", len(workqueue.Remaining(items, completed)))

	if opts.dryRun {
		logger.InfoContext(ctx, "dry run completed")
		return nil
	}
	if cfg.API.APIKey == "" {
		return apperrors.Validation("no API key provided, set ANTHROPIC_API_KEY")
	}

	out, err := sink.Open(output, sink.Options{
		Replace:    opts.replace,
		Source:     opts.input,
		TotalItems: len(items),
		Completed:  completed,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close outcome log failed", "error", cerr)
		}
	}()

	led, err := ledger.Open(output+".batch_log.jsonl", logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := led.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close batch ledger failed", "error", cerr)
		}
	}()

	emitter, err := metrics.New(metrics.Config{
		Address: cfg.Metrics.Address,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := emitter.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics emitter failed", "error", cerr)
		}
	}()

	orch := core.New(core.Options{
		Service:         anthropic.New(cfg.API, logger),
		Ledger:          led,
		Sink:            out,
		Logger:          logger,
		BatchSize:       cfg.Runner.BatchSize,
		Sleep:           cfg.Runner.Sleep,
		ContinueOnError: cfg.Runner.ContinueOnError,
		Metrics:         emitter,
	})

	summary, err := orch.RunPass(ctx, core.PassInput{
		SourceID:  opts.input,
		Items:     items,
		Completed: completed,
	})
	if err != nil {
		return err
	}

	if summary.Processing > 0 {
		logger.InfoContext(ctx, "some batches are still processing, rerun to collect their results",
			"still_processing", summary.Processing)
	}
	if summary.BatchErrors > 0 {
		logger.WarnContext(ctx, "some batches failed and will be retried on the next run",
			"batch_errors", summary.BatchErrors, "batches", summary.Batches)
	}
	return nil
}
