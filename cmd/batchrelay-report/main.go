// Command batchrelay-report reads an outcome log, extracts rubric scores
// from the recorded responses, and prints per-model statistics with group
// comparison tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/promptops/batchrelay/internal/bootstrap"
	apperrors "github.com/promptops/batchrelay/internal/errors"
	"github.com/promptops/batchrelay/internal/report"
)

type options struct {
	output  string
	verbose bool
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.output, "output", "", "outcome log path to analyze (required)")
	flag.StringVar(&opts.output, "o", "", "shorthand for -output")
	flag.BoolVar(&opts.verbose, "v", false, "enable debug logging")
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

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.output == "" {
		return apperrors.Validation("an outcome log is required, see -output")
	}

	samples, err := report.Collect(ctx, logger, opts.output)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "outcome log collected", "samples", len(samples))

	reports, err := report.Run(ctx, logger, samples, report.DefaultMetrics())
	if err != nil {
		return err
	}
	return render(os.Stdout, reports)
}

func render(w io.Writer, reports []report.MetricReport) error {
	for _, rep := range reports {
		if _, err := fmt.Fprintf(w, "metric: %s\n", rep.Metric); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  model\tn\tmean\tmedian")
		for _, g := range rep.Groups {
			fmt.Fprintf(tw, "  %s\t%d\t%.2f\t%.2f\n",
				g.Name, len(g.Values), stat.Mean(g.Values, nil), groupMedian(g.Values))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if rep.Skipped != "" {
			fmt.Fprintf(w, "  skipped: %s\n\n", rep.Skipped)
			continue
		}

		fmt.Fprintf(w, "  normality: %s\n", passFail(rep.Normal))
		fmt.Fprintf(w, "  variance homogeneity: %s (Levene p=%.4g)\n",
			passFail(!rep.Variance.Significant()), rep.Variance.PValue)

		if rep.KruskalWallis != nil {
			kw := rep.KruskalWallis
			fmt.Fprintf(w, "  Kruskal-Wallis: H=%.4g p=%.4g\n  %s\n", kw.Statistic, kw.PValue, kw.Interpretation)
		}
		if len(rep.Dunn) > 0 {
			fmt.Fprintln(w, "  Dunn's pairwise comparisons (Bonferroni adjusted):")
			dw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(dw, "    group1\tgroup2\tmean_diff\tmedian_diff\tz\tp_adj\treject")
			for _, row := range rep.Dunn {
				fmt.Fprintf(dw, "    %s\t%s\t%.3f\t%.3f\t%.2f\t%.4g\t%v\n",
					row.Group1, row.Group2, row.MeanDiff, row.MedianDiff, row.ZScore, row.PAdjusted, row.Reject)
			}
			if err := dw.Flush(); err != nil {
				return err
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

func groupMedian(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}
