// Package stats implements the nonparametric group-comparison tests used to
// analyze scored batch outcomes: Kruskal-Wallis with tie correction, Levene's
// variance check, a moment-based normality check, and Dunn's post-hoc test
// with Bonferroni correction.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// Interpretation strings attached to test results.
const (
	InterpSignificant    = "Significant difference between groups"
	InterpNotSignificant = "No significant difference between groups"
)

// Alpha is the significance level shared by every test in the package.
const Alpha = 0.05

// Group is one named sample of numeric observations.
type Group struct {
	Name   string
	Values []float64
}

// TestResult is the outcome of a single hypothesis test.
type TestResult struct {
	Statistic      float64
	PValue         float64
	Interpretation string
}

// Significant reports whether the test rejected at the package alpha.
func (r TestResult) Significant() bool {
	return r.PValue < Alpha
}

// PairwiseComparison is one row of a Dunn's test: the rank-based z score for
// a pair of groups plus descriptive differences of the raw values.
type PairwiseComparison struct {
	Group1     string
	Group2     string
	MeanDiff   float64
	MedianDiff float64
	ZScore     float64
	PValue     float64
	PAdjusted  float64
	Reject     bool
}

func validateGroups(groups []Group) error {
	if len(groups) < 2 {
		return apperrors.Validation("at least two groups are required")
	}
	for _, g := range groups {
		if len(g.Values) == 0 {
			return apperrors.Validationf("group %q has no observations", g.Name)
		}
	}
	return nil
}

// ranks assigns average ranks (ties share the mean of their rank span) to the
// pooled observations, returned in input order.
func ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		// Ranks are 1-based; tied values get the average of positions i+1..j.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}

// tieCorrectionSum returns sum(t^3 - t) over every tie run of size t.
func tieCorrectionSum(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		t := float64(j - i)
		if t > 1 {
			sum += t*t*t - t
		}
		i = j
	}
	return sum
}

func pool(groups []Group) (values []float64, sizes []int) {
	for _, g := range groups {
		values = append(values, g.Values...)
		sizes = append(sizes, len(g.Values))
	}
	return values, sizes
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// KruskalWallis performs the Kruskal-Wallis H test across the groups, with
// tie correction, approximating the null distribution by chi-squared with
// k-1 degrees of freedom.
func KruskalWallis(groups []Group) (TestResult, error) {
	if err := validateGroups(groups); err != nil {
		return TestResult{}, err
	}
	values, sizes := pool(groups)
	n := float64(len(values))
	r := ranks(values)

	var h float64
	offset := 0
	for _, size := range sizes {
		var rankSum float64
		for _, rv := range r[offset : offset+size] {
			rankSum += rv
		}
		h += rankSum * rankSum / float64(size)
		offset += size
	}
	h = 12/(n*(n+1))*h - 3*(n+1)

	// Correct for ties.
	if correction := 1 - tieCorrectionSum(values)/(n*n*n-n); correction > 0 {
		h /= correction
	}

	chi2 := distuv.ChiSquared{K: float64(len(groups) - 1)}
	p := chi2.Survival(h)
	return TestResult{
		Statistic:      h,
		PValue:         p,
		Interpretation: interpret(p),
	}, nil
}

// Levene performs the median-centered Levene test (Brown-Forsythe) for
// homogeneity of variance across the groups.
func Levene(groups []Group) (TestResult, error) {
	if err := validateGroups(groups); err != nil {
		return TestResult{}, err
	}
	k := len(groups)
	var n int
	deviations := make([][]float64, k)
	for i, g := range groups {
		center := median(g.Values)
		devs := make([]float64, len(g.Values))
		for j, v := range g.Values {
			devs[j] = math.Abs(v - center)
		}
		deviations[i] = devs
		n += len(g.Values)
	}
	if n <= k {
		return TestResult{}, apperrors.Validation("not enough observations for a variance test")
	}

	groupMeans := make([]float64, k)
	var grandSum float64
	for i, devs := range deviations {
		groupMeans[i] = stat.Mean(devs, nil)
		grandSum += groupMeans[i] * float64(len(devs))
	}
	grandMean := grandSum / float64(n)

	var between, within float64
	for i, devs := range deviations {
		diff := groupMeans[i] - grandMean
		between += float64(len(devs)) * diff * diff
		for _, d := range devs {
			e := d - groupMeans[i]
			within += e * e
		}
	}
	if within == 0 {
		// Degenerate samples; no evidence of unequal spread.
		return TestResult{Statistic: 0, PValue: 1, Interpretation: interpret(1)}, nil
	}

	w := (float64(n-k) / float64(k-1)) * (between / within)
	fDist := distuv.F{D1: float64(k - 1), D2: float64(n - k)}
	p := fDist.Survival(w)
	return TestResult{
		Statistic:      w,
		PValue:         p,
		Interpretation: interpret(p),
	}, nil
}

// minNormalitySample is the smallest group size the moment approximations
// are usable for; smaller groups are treated as passing.
const minNormalitySample = 8

// NormalityCheck runs a moment-based omnibus normality test (skewness and
// excess kurtosis z scores combined as chi-squared with 2 degrees of freedom)
// on one sample and reports whether normality is rejected.
func NormalityCheck(values []float64) TestResult {
	n := float64(len(values))
	if len(values) < minNormalitySample {
		return TestResult{Statistic: 0, PValue: 1, Interpretation: interpret(1)}
	}

	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		return TestResult{Statistic: 0, PValue: 1, Interpretation: interpret(1)}
	}
	var m3, m4 float64
	for _, v := range values {
		d := (v - mean) / std
		m3 += d * d * d
		m4 += d * d * d * d
	}
	skew := m3 / n
	kurt := m4/n - 3

	zSkew := skew / math.Sqrt(6/n)
	zKurt := kurt / math.Sqrt(24/n)
	k2 := zSkew*zSkew + zKurt*zKurt

	chi2 := distuv.ChiSquared{K: 2}
	p := chi2.Survival(k2)
	return TestResult{Statistic: k2, PValue: p, Interpretation: interpret(p)}
}

// GroupsNormal reports whether every group passes the normality check.
func GroupsNormal(groups []Group) bool {
	for _, g := range groups {
		if NormalityCheck(g.Values).PValue <= Alpha {
			return false
		}
	}
	return true
}

// Dunn performs Dunn's post-hoc test for every pair of groups using pooled
// average ranks with tie correction. totalComparisons scales the Bonferroni
// adjustment; pass 1 when this is the only family of comparisons.
func Dunn(groups []Group, totalComparisons int) ([]PairwiseComparison, error) {
	if err := validateGroups(groups); err != nil {
		return nil, err
	}
	if totalComparisons < 1 {
		totalComparisons = 1
	}

	values, sizes := pool(groups)
	n := float64(len(values))
	r := ranks(values)

	avgRanks := make([]float64, len(groups))
	means := make([]float64, len(groups))
	medians := make([]float64, len(groups))
	offset := 0
	for i, size := range sizes {
		var rankSum float64
		for _, rv := range r[offset : offset+size] {
			rankSum += rv
		}
		avgRanks[i] = rankSum / float64(size)
		means[i] = stat.Mean(groups[i].Values, nil)
		medians[i] = median(groups[i].Values)
		offset += size
	}

	a := n * (n + 1) / 12
	ties := tieCorrectionSum(values) / (12 * (n - 1))
	norm := distuv.UnitNormal

	var out []PairwiseComparison
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			se := math.Sqrt((a - ties) * (1/float64(sizes[i]) + 1/float64(sizes[j])))
			z := math.Abs(avgRanks[i]-avgRanks[j]) / se
			p := 2 * norm.Survival(z)
			out = append(out, PairwiseComparison{
				Group1:     groups[i].Name,
				Group2:     groups[j].Name,
				MeanDiff:   means[i] - means[j],
				MedianDiff: medians[i] - medians[j],
				ZScore:     z,
				PValue:     p,
				PAdjusted:  p * float64(totalComparisons),
				Reject:     p < Alpha/float64(totalComparisons),
			})
		}
	}
	return out, nil
}

func interpret(p float64) string {
	if p < Alpha {
		return InterpSignificant
	}
	return InterpNotSignificant
}
