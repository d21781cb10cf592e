package model

import "fmt"

// PanelData holds a staggered-adoption panel in columnar form. Cohort is the
// adoption period of each unit (+Inf for never-treated units), Period the
// calendar or relative period of the observation. Outcome, Covariates and
// Weights are optional; missing values are NaN.
type PanelData struct {
	Cohort     []float64
	Period     []float64
	Outcome    []float64
	Covariates [][]float64
	Weights    []float64
}

// Len returns the number of observations.
func (p *PanelData) Len() int { return len(p.Cohort) }

// Validate checks that every present column has one value per observation.
func (p *PanelData) Validate() error {
	n := len(p.Cohort)
	if len(p.Period) != n {
		return fmt.Errorf("cohort and period must have the same length: %d != %d", n, len(p.Period))
	}
	if p.Outcome != nil && len(p.Outcome) != n {
		return fmt.Errorf("outcome and cohort must have the same length: %d != %d", len(p.Outcome), n)
	}
	if p.Weights != nil && len(p.Weights) != n {
		return fmt.Errorf("weights and cohort must have the same length: %d != %d", len(p.Weights), n)
	}
	if p.Covariates != nil && len(p.Covariates) != n {
		return fmt.Errorf("covariates and cohort must have the same length: %d != %d", len(p.Covariates), n)
	}
	return nil
}
