package model

// Estimation statuses carried in EstimationParams.Status.
const (
	StatusOK                  = "ok"
	StatusInteractionsOnly    = "interactions_only"
	StatusNoValidObservations = "no_valid_observations"
)

// EstimationParams echoes the configuration a result was produced under,
// together with the outcome status of the run.
type EstimationParams struct {
	Status     string    `json:"status"`
	Aggregated bool      `json:"aggregated"`
	RefPeriods []float64 `json:"refPeriods,omitempty"`
	RefCohorts []float64 `json:"refCohorts,omitempty"`
	ATT        bool      `json:"att"`
	NObs       int       `json:"nObs"`
}

// SunAbrahamResult is the output record of an interaction-weighted
// estimation: per-event-time effects with their covariance, the cohort
// composition of the sample, and optionally an overall post-treatment
// average effect.
type SunAbrahamResult struct {
	AttByEvent    []float64        `json:"attByEvent"`
	SeByEvent     []float64        `json:"seByEvent"`
	EventTimes    []float64        `json:"eventTimes"`
	Vcov          [][]float64      `json:"vcov"`
	CohortShares  []float64        `json:"cohortShares"`
	InfluenceFunc []float64        `json:"influenceFunc,omitempty"`
	Att           *float64         `json:"att,omitempty"`
	SeAtt         *float64         `json:"seAtt,omitempty"`
	NCohorts      int              `json:"nCohorts"`
	NPeriods      int              `json:"nPeriods"`
	Params        EstimationParams `json:"estimationParams"`
}

// AggregationType reports "dynamic" for an event-study profile and
// "overall" once the post-treatment effects have been collapsed into a
// single average.
func (r *SunAbrahamResult) AggregationType() string {
	if r.Att == nil {
		return "dynamic"
	}
	return "overall"
}
