package sunab

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ModelEstimate is the output of EstimateModel. Aggregated carries the
// event-study collapse; with noAgg the raw interaction coefficients are
// returned instead.
type ModelEstimate struct {
	Aggregated   bool
	AttByEvent   []float64
	SeByEvent    []float64
	EventTimes   []float64
	VcovEvent    *mat.Dense
	CohortShares []float64
	Att          *float64
	SeAtt        *float64
	Coefs        []float64
	Vcov         *mat.Dense
	Se           []float64
	NObs         int
}

// EstimateModel runs the weighted regression of outcome on
// [covariates | interactions] and aggregates the interaction block into an
// event study unless noAgg is set. Rows with missing values anywhere in the
// design, a missing cohort or period, or a non-positive weight are dropped.
// A nil return means the
// remaining observations cannot identify the design; exactly one warning has
// been logged in that case. Rank deficiency is downgraded to a warning and a
// pseudo-inverse fit.
func (e *Estimator) EstimateModel(outcome []float64, covariates [][]float64, interactions *mat.Dense, cohort, period, periodValues, weights []float64, att, noAgg bool) *ModelEstimate {
	n := len(outcome)
	nCov := 0
	if len(covariates) > 0 {
		nCov = len(covariates[0])
	}
	_, nI := interactions.Dims()
	totalCols := nCov + nI

	valid := make([]bool, n)
	nValid := 0
	for i := 0; i < n; i++ {
		ok := !math.IsNaN(outcome[i])
		if ok && i < len(cohort) && math.IsNaN(cohort[i]) {
			ok = false
		}
		if ok && i < len(period) && math.IsNaN(period[i]) {
			ok = false
		}
		if ok && weights != nil && (math.IsNaN(weights[i]) || weights[i] <= 0) {
			ok = false
		}
		if ok {
			for j := 0; j < nCov; j++ {
				if math.IsNaN(covariates[i][j]) {
					ok = false
					break
				}
			}
		}
		if ok {
			for j := 0; j < nI; j++ {
				if math.IsNaN(interactions.At(i, j)) {
					ok = false
					break
				}
			}
		}
		valid[i] = ok
		if ok {
			nValid++
		}
	}

	if nValid <= totalCols {
		e.logger.Warn("Insufficient observations for estimation",
			zap.Int("validObservations", nValid),
			zap.Int("designColumns", totalCols))
		return nil
	}

	X := mat.NewDense(nValid, totalCols, nil)
	y := make([]float64, nValid)
	var w []float64
	if weights != nil {
		w = make([]float64, nValid)
	}
	r := 0
	for i := 0; i < n; i++ {
		if !valid[i] {
			continue
		}
		for j := 0; j < nCov; j++ {
			X.Set(r, j, covariates[i][j])
		}
		for j := 0; j < nI; j++ {
			X.Set(r, nCov+j, interactions.At(i, j))
		}
		y[r] = outcome[i]
		if w != nil {
			w[r] = weights[i]
		}
		r++
	}

	fit, err := SolveWLS(X, y, w)
	if err != nil {
		e.logger.Warn("Weighted least squares failed", zap.Error(err))
		return nil
	}
	if fit.RankDeficient {
		e.logger.Warn("Rank-deficient design matrix, using pseudo-inverse solution",
			zap.Int("rank", fit.Rank),
			zap.Int("designColumns", totalCols))
	}

	// Interaction sub-block of the fit.
	coefsI := fit.Coefs[nCov:]
	vcovI := mat.NewDense(nI, nI, nil)
	for a := 0; a < nI; a++ {
		for b := 0; b < nI; b++ {
			vcovI.Set(a, b, fit.Vcov.At(nCov+a, nCov+b))
		}
	}

	if noAgg {
		se := make([]float64, nI)
		for j := 0; j < nI; j++ {
			if v := vcovI.At(j, j); v > 0 {
				se[j] = math.Sqrt(v)
			}
		}
		return &ModelEstimate{
			Aggregated:   false,
			Coefs:        coefsI,
			Vcov:         vcovI,
			Se:           se,
			CohortShares: cohortShares(cohort),
			NObs:         nValid,
		}
	}

	es := AggregateToEventStudy(coefsI, vcovI, interactions, cohort, periodValues, weights, att)
	return &ModelEstimate{
		Aggregated:   true,
		AttByEvent:   es.AttByEvent,
		SeByEvent:    es.SeByEvent,
		EventTimes:   es.EventTimes,
		VcovEvent:    es.VcovEvent,
		CohortShares: es.CohortShares,
		Att:          es.Att,
		SeAtt:        es.SeAtt,
		NObs:         nValid,
	}
}
