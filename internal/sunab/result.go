package sunab

import (
	"math"

	"go-sunab/internal/model"

	"gonum.org/v1/gonum/mat"
)

// emptyResult is returned when no observations can contribute: empty
// profiles and a NaN overall effect, tagged no_valid_observations.
func emptyResult(opts Options) *model.SunAbrahamResult {
	nan := math.NaN()
	return &model.SunAbrahamResult{
		AttByEvent:   []float64{},
		SeByEvent:    []float64{},
		EventTimes:   []float64{},
		Vcov:         [][]float64{},
		CohortShares: []float64{},
		Att:          &nan,
		SeAtt:        &nan,
		Params: model.EstimationParams{
			Status:     model.StatusNoValidObservations,
			Aggregated: !opts.NoAgg,
			RefCohorts: opts.RefCohorts,
			ATT:        opts.ATT,
		},
	}
}

// interactionsOnlyResult describes a run without an outcome to regress on:
// the interaction structure is known but every effect is zero.
func interactionsOnlyResult(periodValues, refPeriods, cohort []float64, opts Options) *model.SunAbrahamResult {
	nP := len(periodValues)
	zero := 0.0
	zeroRow := make([]float64, nP)
	vcov := make([][]float64, nP)
	for i := range vcov {
		vcov[i] = append([]float64(nil), zeroRow...)
	}
	shares := cohortShares(cohort)
	return &model.SunAbrahamResult{
		AttByEvent:   make([]float64, nP),
		SeByEvent:    make([]float64, nP),
		EventTimes:   append([]float64(nil), periodValues...),
		Vcov:         vcov,
		CohortShares: shares,
		Att:          &zero,
		SeAtt:        &zero,
		NCohorts:     len(shares),
		NPeriods:     nP,
		Params: model.EstimationParams{
			Status:     model.StatusInteractionsOnly,
			Aggregated: false,
			RefPeriods: refPeriods,
			RefCohorts: opts.RefCohorts,
			ATT:        opts.ATT,
		},
	}
}

// assembleResult converts a model estimate into the public result record.
// Disaggregated estimates keep the raw interaction coefficients, labeling
// coefficient j with event time periodValues[j mod len(periodValues)].
func assembleResult(est *ModelEstimate, periodValues, refPeriods []float64, opts Options) *model.SunAbrahamResult {
	params := model.EstimationParams{
		Status:     model.StatusOK,
		Aggregated: est.Aggregated,
		RefPeriods: refPeriods,
		RefCohorts: opts.RefCohorts,
		ATT:        opts.ATT,
		NObs:       est.NObs,
	}

	if !est.Aggregated {
		nI := len(est.Coefs)
		nP := len(periodValues)
		eventTimes := make([]float64, nI)
		for j := 0; j < nI; j++ {
			if nP > 0 {
				eventTimes[j] = periodValues[j%nP]
			}
		}
		return &model.SunAbrahamResult{
			AttByEvent:   est.Coefs,
			SeByEvent:    est.Se,
			EventTimes:   eventTimes,
			Vcov:         denseToRows(est.Vcov),
			CohortShares: est.CohortShares,
			NCohorts:     len(est.CohortShares),
			NPeriods:     nP,
			Params:       params,
		}
	}

	return &model.SunAbrahamResult{
		AttByEvent:   est.AttByEvent,
		SeByEvent:    est.SeByEvent,
		EventTimes:   est.EventTimes,
		Vcov:         denseToRows(est.VcovEvent),
		CohortShares: est.CohortShares,
		Att:          est.Att,
		SeAtt:        est.SeAtt,
		NCohorts:     len(est.CohortShares),
		NPeriods:     len(periodValues),
		Params:       params,
	}
}

func denseToRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return [][]float64{}
	}
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}
