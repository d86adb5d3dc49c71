// Package report turns an outcome log into per-model score statistics and
// group-comparison test results.
package report

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
	"github.com/promptops/batchrelay/internal/scoring"
	"github.com/promptops/batchrelay/internal/stats"
)

const maxLineBytes = 32 * 1024 * 1024

// Sample is one successful outcome: the generating model and its text.
type Sample struct {
	Model string
	Text  string
}

// Metric maps a response text to a numeric observation. ok=false drops the
// sample from that metric.
type Metric struct {
	Name    string
	Extract func(text string) (float64, bool)
}

// DefaultMetrics are the rubric score and the share of responses following
// the requested answer format.
func DefaultMetrics() []Metric {
	return []Metric{
		{Name: "score", Extract: scoring.ParseScore},
		{Name: "format_compliance", Extract: func(text string) (float64, bool) {
			if scoring.FollowedFormat(text) {
				return 1, true
			}
			return 0, true
		}},
	}
}

// MetricReport is the analysis of one metric across model groups.
type MetricReport struct {
	Metric  string
	Groups  []stats.Group
	Skipped string

	Normal        bool
	Variance      stats.TestResult
	KruskalWallis *stats.TestResult
	Dunn          []stats.PairwiseComparison
}

// Collect reads the outcome log and returns one sample per successful record.
// Header lines, failure records, and malformed lines are skipped with a
// warning; an unreadable file is an IO error.
func Collect(ctx context.Context, logger *slog.Logger, path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IOf(err, "opening outcome log %s", path)
	}
	defer f.Close()

	var samples []Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		text, ok, err := scoring.ResponseText(line)
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed outcome line", "line", lineNum, "error", err)
			continue
		}
		if !ok {
			continue
		}
		var rec model.OutcomeRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Response == nil {
			continue
		}
		samples = append(samples, Sample{Model: rec.Response.Model, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf(err, "reading outcome log %s", path)
	}
	return samples, nil
}

// Run analyzes every metric concurrently, one goroutine per metric, and
// returns the reports in metric order. Each metric groups samples by model,
// checks normality and variance homogeneity, and falls back to the
// Kruskal-Wallis test with Dunn's post-hoc comparisons when either
// assumption fails.
func Run(ctx context.Context, logger *slog.Logger, samples []Sample, metrics []Metric) ([]MetricReport, error) {
	reports := make([]MetricReport, len(metrics))
	g, ctx := errgroup.WithContext(ctx)
	for i, metric := range metrics {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return apperrors.Service("analysis interrupted", err)
			}
			rep, err := analyze(metric, samples)
			if err != nil {
				return err
			}
			logger.DebugContext(ctx, "metric analyzed", "metric", metric.Name, "groups", len(rep.Groups))
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func analyze(metric Metric, samples []Sample) (MetricReport, error) {
	byModel := map[string][]float64{}
	for _, s := range samples {
		v, ok := metric.Extract(s.Text)
		if !ok {
			continue
		}
		byModel[s.Model] = append(byModel[s.Model], v)
	}

	names := make([]string, 0, len(byModel))
	for name := range byModel {
		names = append(names, name)
	}
	sort.Strings(names)
	groups := make([]stats.Group, 0, len(names))
	for _, name := range names {
		groups = append(groups, stats.Group{Name: name, Values: byModel[name]})
	}

	rep := MetricReport{Metric: metric.Name, Groups: groups}
	if len(groups) < 2 {
		rep.Skipped = "need at least two model groups to compare"
		return rep, nil
	}

	rep.Normal = stats.GroupsNormal(groups)
	variance, err := stats.Levene(groups)
	if err != nil {
		return rep, err
	}
	rep.Variance = variance

	if rep.Normal && !variance.Significant() {
		// Parametric assumptions hold; no nonparametric comparison needed.
		return rep, nil
	}

	kw, err := stats.KruskalWallis(groups)
	if err != nil {
		return rep, err
	}
	rep.KruskalWallis = &kw

	if kw.Significant() {
		comparisons := len(groups) * (len(groups) - 1) / 2
		dunn, err := stats.Dunn(groups, comparisons)
		if err != nil {
			return rep, err
		}
		rep.Dunn = dunn
	}
	return rep, nil
}
