package sunab

import (
	"fmt"
	"math"
	"sort"
)

// isFinite reports whether v is a usable numeric value.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// cohortIndex relabels the distinct finite cohort values to contiguous
// 0-based indices in ascending value order. Rows whose cohort is NaN or
// infinite get index -1.
func cohortIndex(cohort []float64) (idx []int, values []float64) {
	seen := make(map[float64]struct{})
	for _, c := range cohort {
		if isFinite(c) {
			seen[c] = struct{}{}
		}
	}
	values = make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)

	pos := make(map[float64]int, len(values))
	for i, v := range values {
		pos[v] = i
	}
	idx = make([]int, len(cohort))
	for i, c := range cohort {
		if j, ok := pos[c]; ok {
			idx[i] = j
		} else {
			idx[i] = -1
		}
	}
	return idx, values
}

// relativePeriods centers calendar periods on the adoption period of each
// row's cohort. Inputs that already contain a negative period are taken as
// pre-centered and returned unchanged.
func relativePeriods(cohort, period []float64) (rel []float64, wasRelative bool) {
	for _, p := range period {
		if p < 0 {
			wasRelative = true
			break
		}
	}
	rel = make([]float64, len(period))
	if wasRelative {
		copy(rel, period)
		return rel, true
	}
	for i := range period {
		if isFinite(cohort[i]) && !math.IsNaN(period[i]) {
			rel[i] = period[i] - cohort[i]
		} else {
			rel[i] = math.NaN()
		}
	}
	return rel, false
}

// checkCohortPeriodOverlap requires at least one finite cohort value to
// appear among the calendar period values; otherwise no cohort is ever
// observed at its own adoption period and the design is meaningless.
func checkCohortPeriodOverlap(cohortValues, period []float64) error {
	pset := make(map[float64]struct{}, len(period))
	for _, p := range period {
		if isFinite(p) {
			pset[p] = struct{}{}
		}
	}
	for _, c := range cohortValues {
		if _, ok := pset[c]; ok {
			return nil
		}
	}
	return fmt.Errorf("No cohort values found in period values")
}

// findNeverAlwaysTreated splits cohorts by their observed relative periods.
// A cohort that never reaches a relative period >= 0 is never treated and
// joins the reference pool. A cohort with no relative period < 0 has no
// usable pre-treatment observation, so every one of its rows is flagged
// always-treated.
func findNeverAlwaysTreated(cohortIdx []int, relPeriod []float64, nCohorts int) (neverTreated, alwaysTreated []bool) {
	hasPre := make([]bool, nCohorts)
	hasPost := make([]bool, nCohorts)
	for i, c := range cohortIdx {
		if c < 0 || math.IsNaN(relPeriod[i]) {
			continue
		}
		if relPeriod[i] < 0 {
			hasPre[c] = true
		} else {
			hasPost[c] = true
		}
	}
	neverTreated = make([]bool, nCohorts)
	alwaysTreated = make([]bool, nCohorts)
	for c := 0; c < nCohorts; c++ {
		neverTreated[c] = !hasPost[c]
		alwaysTreated[c] = hasPost[c] && !hasPre[c]
	}
	return neverTreated, alwaysTreated
}

// cohortShares returns the fraction of observations in each finite cohort,
// in ascending cohort-value order. Rows with non-finite cohorts are left
// out of both numerator and denominator, so the shares sum to 1 across the
// cohorts that can contribute effects.
func cohortShares(cohort []float64) []float64 {
	idx, values := cohortIndex(cohort)
	counts := make([]float64, len(values))
	total := 0.0
	for _, c := range idx {
		if c >= 0 {
			counts[c]++
			total++
		}
	}
	shares := make([]float64, len(values))
	if total == 0 {
		return shares
	}
	for c := range counts {
		shares[c] = counts[c] / total
	}
	return shares
}
