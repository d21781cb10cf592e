package sunab

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// EventStudy is the output of AggregateToEventStudy: one weighted-average
// effect per event time with the implied covariance, plus the cohort
// composition and, optionally, the overall post-treatment average.
type EventStudy struct {
	AttByEvent   []float64
	SeByEvent    []float64
	EventTimes   []float64
	VcovEvent    *mat.Dense
	CohortShares []float64
	Att          *float64
	SeAtt        *float64
}

// AggregateToEventStudy collapses interaction coefficients into
// per-event-time effects. Coefficient j is attributed to event time
// periodValues[j mod len(periodValues)], so a coefficient vector laid out in
// cohort-major blocks aggregates across cohorts while a single block passes
// through unchanged. Within each event time, coefficients are weighted by
// the observation mass carried by their interaction column; the covariance
// propagates as a quadratic form in the same weights. Event times no cohort
// ever reaches get effect 0 with standard error 0.
func AggregateToEventStudy(coefs []float64, vcov, interactions *mat.Dense, cohort, periodValues, weights []float64, computeATT bool) *EventStudy {
	nI := len(coefs)
	nP := len(periodValues)
	es := &EventStudy{
		AttByEvent:   make([]float64, nP),
		SeByEvent:    make([]float64, nP),
		EventTimes:   append([]float64(nil), periodValues...),
		VcovEvent:    mat.NewDense(max(nP, 1), max(nP, 1), nil),
		CohortShares: cohortShares(cohort),
	}
	if nP == 0 || nI == 0 {
		return es
	}

	rows, _ := interactions.Dims()
	mass := make([]float64, nI)
	for j := 0; j < nI; j++ {
		for i := 0; i < rows; i++ {
			v := interactions.At(i, j)
			if v == 0 || math.IsNaN(v) {
				continue
			}
			wi := 1.0
			if weights != nil {
				wi = weights[i]
			}
			mass[j] += wi * v
		}
	}

	// Per-event normalized weights: lambda is the (nI x nP) aggregation
	// matrix, with column b holding the within-bucket weights.
	bucketTotal := make([]float64, nP)
	for j := 0; j < nI; j++ {
		bucketTotal[j%nP] += mass[j]
	}
	lambda := mat.NewDense(nI, nP, nil)
	for j := 0; j < nI; j++ {
		b := j % nP
		if bucketTotal[b] > 0 {
			lambda.Set(j, b, mass[j]/bucketTotal[b])
		}
	}

	for j := 0; j < nI; j++ {
		b := j % nP
		es.AttByEvent[b] += lambda.At(j, b) * coefs[j]
	}

	var tmp mat.Dense
	tmp.Mul(lambda.T(), vcov)
	es.VcovEvent.Mul(&tmp, lambda)
	for b := 0; b < nP; b++ {
		v := es.VcovEvent.At(b, b)
		if v > 0 {
			es.SeByEvent[b] = math.Sqrt(v)
		}
	}

	if computeATT {
		att, seAtt := averagePostTreatment(es.AttByEvent, periodValues, es.VcovEvent)
		es.Att = &att
		es.SeAtt = &seAtt
	}
	return es
}

// averagePostTreatment averages the per-event effects over event times >= 0,
// the adoption period included. Event times with no reaching cohort enter as
// zeros. The standard error is the quadratic form of the equal averaging
// weights over the event covariance.
func averagePostTreatment(attByEvent, eventTimes []float64, vcovEvent *mat.Dense) (att, seAtt float64) {
	var post []int
	for b, v := range eventTimes {
		if v >= 0 {
			post = append(post, b)
		}
	}
	k := float64(len(post))
	if k == 0 {
		return 0, 0
	}
	for _, b := range post {
		att += attByEvent[b]
	}
	att /= k

	variance := 0.0
	for _, u := range post {
		for _, v := range post {
			variance += vcovEvent.At(u, v)
		}
	}
	variance /= k * k
	if variance > 0 {
		seAtt = math.Sqrt(variance)
	}
	return att, seAtt
}
