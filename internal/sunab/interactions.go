package sunab

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Special reference-period tokens: the earliest / latest observed relative
// period.
const (
	RefPeriodFirst = ".F"
	RefPeriodLast  = ".L"
)

const binPrefix = "bin::"

// resolveRefPeriods expands the reference-period configuration against the
// observed relative period values. A non-empty spec token takes precedence
// over literal values; with neither, the period before adoption (-1) is the
// reference.
func resolveRefPeriods(spec string, literals, periodValues []float64) ([]float64, error) {
	if spec != "" {
		if len(periodValues) == 0 {
			return nil, fmt.Errorf("reference period %q requires observed period values", spec)
		}
		switch spec {
		case RefPeriodFirst:
			return []float64{periodValues[0]}, nil
		case RefPeriodLast:
			return []float64{periodValues[len(periodValues)-1]}, nil
		default:
			return nil, fmt.Errorf("Unknown special reference period: %q", spec)
		}
	}
	if len(literals) == 0 {
		return []float64{-1}, nil
	}
	out := make([]float64, len(literals))
	copy(out, literals)
	return out, nil
}

// parseBin parses a "bin::k" grouping specification.
func parseBin(spec string) (int, error) {
	if !strings.HasPrefix(spec, binPrefix) {
		return 0, fmt.Errorf("invalid bin specification %q: expected %q", spec, binPrefix+"k")
	}
	k, err := strconv.Atoi(strings.TrimPrefix(spec, binPrefix))
	if err != nil || k < 1 {
		return 0, fmt.Errorf("invalid bin width in %q: want a positive integer", spec)
	}
	return k, nil
}

// binValues maps every finite value onto the first value of its k-wide bin,
// anchored at the smallest finite value observed.
func binValues(values []float64, k int) []float64 {
	min := math.Inf(1)
	for _, v := range values {
		if isFinite(v) && v < min {
			min = v
		}
	}
	out := make([]float64, len(values))
	copy(out, values)
	if math.IsInf(min, 1) || k <= 1 {
		return out
	}
	for i, v := range values {
		if isFinite(v) {
			out[i] = min + math.Floor((v-min)/float64(k))*float64(k)
		}
	}
	return out
}

// uniquePeriodValues collects the distinct finite relative period values in
// ascending order, excluding the reference periods.
func uniquePeriodValues(relPeriod, refPeriods []float64) []float64 {
	ref := make(map[float64]struct{}, len(refPeriods))
	for _, r := range refPeriods {
		ref[r] = struct{}{}
	}
	seen := make(map[float64]struct{})
	for _, p := range relPeriod {
		if !isFinite(p) {
			continue
		}
		if _, skip := ref[p]; skip {
			continue
		}
		seen[p] = struct{}{}
	}
	values := make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)
	return values
}

// CreatePeriodInteractions builds the period interaction block of the design
// matrix: one column per non-reference period value, one row per
// observation slot up to nTotal. Rows of reference cohorts and rows outside
// the validity mask stay all zero, rows of always-treated cohorts are all
// NaN, every other row is the one-hot encoding of its period value.
func CreatePeriodInteractions(period, periodValues []float64, isRefCohort, isAlwaysTreated []bool, nTotal int, validMask []bool) *mat.Dense {
	m := mat.NewDense(nTotal, max(len(periodValues), 1), nil)
	if len(periodValues) == 0 {
		return m
	}
	col := make(map[float64]int, len(periodValues))
	for j, v := range periodValues {
		col[v] = j
	}
	for i := 0; i < nTotal; i++ {
		if validMask != nil && i < len(validMask) && !validMask[i] {
			continue
		}
		if i < len(isRefCohort) && isRefCohort[i] {
			continue
		}
		if i < len(isAlwaysTreated) && isAlwaysTreated[i] {
			for j := range periodValues {
				m.Set(i, j, math.NaN())
			}
			continue
		}
		if i < len(period) {
			if j, ok := col[period[i]]; ok {
				m.Set(i, j, 1)
			}
		}
	}
	return m
}
