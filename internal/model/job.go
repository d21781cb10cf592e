package model

// Source describes where panel observations come from.
type Source struct {
	Type string `json:"type"` // "csv" or "json"
	URL  string `json:"url"`  // file path or http(s) URL
}

// Columns maps panel roles onto source column names.
type Columns struct {
	Cohort     string   `json:"cohort"`
	Period     string   `json:"period"`
	Outcome    string   `json:"outcome,omitempty"`
	Covariates []string `json:"covariates,omitempty"`
	Weights    string   `json:"weights,omitempty"`
}

// EstimatorOptions configures a Sun-Abraham run.
type EstimatorOptions struct {
	RefPeriods    []float64 `json:"refPeriods,omitempty"`
	RefPeriodSpec string    `json:"refPeriodSpec,omitempty"` // ".F" or ".L"
	RefCohorts    []float64 `json:"refCohorts,omitempty"`
	Bin           string    `json:"bin,omitempty"`  // "bin::k"
	BinC          string    `json:"binC,omitempty"` // control-group binning
	Intercept     bool      `json:"intercept"`
	ATT           bool      `json:"att"`
	NoAgg         bool      `json:"noAgg"`
}

// Export names the optional output file of a job, relative to the job's
// output directory. Extension picks the format (.csv or .json).
type Export struct {
	File string `json:"file,omitempty"`
}

// EstimationJobSpec is the JSON body submitted to the API or passed to the
// CLI: one panel source, its column mapping, the estimator options, and an
// optional export target.
type EstimationJobSpec struct {
	Source     Source           `json:"source"`
	Columns    Columns          `json:"columns"`
	Estimator  EstimatorOptions `json:"estimator"`
	Export     *Export          `json:"export,omitempty"`
	JobTimeout string           `json:"jobTimeout,omitempty"`
}
