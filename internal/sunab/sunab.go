package sunab

import (
	"fmt"
	"math"
	"sort"

	"go-sunab/internal/model"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Estimator runs Sun-Abraham interaction-weighted estimations. Data
// problems that leave nothing to estimate are reported through the logger
// and collapse into an empty result; only invalid configurations return
// errors.
type Estimator struct {
	logger *zap.Logger
}

// NewEstimator creates an Estimator logging through the given logger. A nil
// logger disables logging.
func NewEstimator(logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{logger: logger}
}

// Options are the estimator knobs of a run. RefPeriodSpec (".F" or ".L")
// takes precedence over RefPeriods; with neither, period -1 is the
// reference. Bin groups calendar periods ("bin::k"), BinC additionally
// restricts binning to the cohort variable.
type Options struct {
	RefPeriods    []float64
	RefPeriodSpec string
	RefCohorts    []float64
	Bin           string
	BinC          string
	ATT           bool
	NoAgg         bool
}

// OptionsFromSpec converts job-spec estimator options.
func OptionsFromSpec(o model.EstimatorOptions) Options {
	return Options{
		RefPeriods:    o.RefPeriods,
		RefPeriodSpec: o.RefPeriodSpec,
		RefCohorts:    o.RefCohorts,
		Bin:           o.Bin,
		BinC:          o.BinC,
		ATT:           o.ATT,
		NoAgg:         o.NoAgg,
	}
}

// design is the prepared estimation input: relative periods, the
// non-reference period values, and the interaction block with its row
// classification.
type design struct {
	relPeriod    []float64
	periodValues []float64
	refPeriods   []float64
	interactions *mat.Dense
	isRefRow     []bool
	isAlwaysRow  []bool
	valid        []bool
	remaining    int
}

// buildDesign validates the configuration and classifies the panel into the
// interaction design. All hard errors of a run originate here.
func (e *Estimator) buildDesign(cohort, period []float64, opts Options) (*design, error) {
	if len(cohort) != len(period) {
		return nil, fmt.Errorf("cohort and period must have the same length: %d != %d", len(cohort), len(period))
	}
	if opts.Bin != "" && opts.BinC != "" {
		return nil, fmt.Errorf("Cannot use 'bin' with 'bin_c'")
	}

	rel, wasRelative := relativePeriods(cohort, period)
	if wasRelative && (opts.Bin != "" || opts.BinC != "") {
		return nil, fmt.Errorf("Cannot use 'bin' when 'period' contains relative values")
	}

	n := len(cohort)
	cohortCol := cohort
	if !wasRelative {
		periodCol := period
		if spec := opts.Bin + opts.BinC; spec != "" {
			k, err := parseBin(spec)
			if err != nil {
				return nil, err
			}
			cohortCol = binValues(cohort, k)
			if opts.Bin != "" {
				periodCol = binValues(period, k)
			}
		}
		_, cohortValues := cohortIndex(cohortCol)
		if err := checkCohortPeriodOverlap(cohortValues, periodCol); err != nil {
			return nil, err
		}
		rel, _ = relativePeriods(cohortCol, periodCol)
	}

	allValues := uniquePeriodValues(rel, nil)
	refPeriods, err := resolveRefPeriods(opts.RefPeriodSpec, opts.RefPeriods, allValues)
	if err != nil {
		return nil, err
	}
	periodValues := uniquePeriodValues(rel, refPeriods)

	cohortIdx, cohortValues := cohortIndex(cohortCol)
	neverTreated, alwaysTreated := findNeverAlwaysTreated(cohortIdx, rel, len(cohortValues))

	refCohort := make(map[float64]struct{}, len(opts.RefCohorts))
	for _, c := range opts.RefCohorts {
		refCohort[c] = struct{}{}
	}

	d := &design{
		relPeriod:    rel,
		periodValues: periodValues,
		refPeriods:   refPeriods,
		isRefRow:     make([]bool, n),
		isAlwaysRow:  make([]bool, n),
		valid:        make([]bool, n),
	}
	for i := 0; i < n; i++ {
		d.valid[i] = !math.IsNaN(cohortCol[i]) && !math.IsNaN(period[i])
		if math.IsInf(cohortCol[i], 0) {
			d.isRefRow[i] = true
			continue
		}
		if c := cohortIdx[i]; c >= 0 {
			if _, ok := refCohort[cohortCol[i]]; ok || neverTreated[c] {
				d.isRefRow[i] = true
			}
			d.isAlwaysRow[i] = alwaysTreated[c]
		}
	}
	for i := 0; i < n; i++ {
		if d.valid[i] && !d.isRefRow[i] {
			d.remaining++
		}
	}

	d.interactions = CreatePeriodInteractions(rel, periodValues, d.isRefRow, d.isAlwaysRow, n, d.valid)
	return d, nil
}

// Sunab estimates cohort-by-period treatment effects on the panel and
// aggregates them into an event study. Without an outcome the interaction
// structure is classified but nothing is estimated. Soft data
// problems (no rows left, too few observations) produce the empty
// no_valid_observations result instead of an error.
func (e *Estimator) Sunab(p *model.PanelData, opts Options) (*model.SunAbrahamResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d, err := e.buildDesign(p.Cohort, p.Period, opts)
	if err != nil {
		return nil, err
	}
	if d.remaining == 0 {
		e.logger.Warn("No observations remain after removing reference cohorts")
		return emptyResult(opts), nil
	}
	if p.Outcome == nil {
		return interactionsOnlyResult(d.periodValues, d.refPeriods, p.Cohort, opts), nil
	}
	est := e.EstimateModel(p.Outcome, p.Covariates, d.interactions, p.Cohort, p.Period, d.periodValues, p.Weights, opts.ATT, opts.NoAgg)
	if est == nil {
		return emptyResult(opts), nil
	}
	return assembleResult(est, d.periodValues, d.refPeriods, opts), nil
}

// SunabATT is Sunab with the overall post-treatment average requested.
func (e *Estimator) SunabATT(p *model.PanelData, opts Options) (*model.SunAbrahamResult, error) {
	opts.ATT = true
	return e.Sunab(p, opts)
}

// Interactions classifies the panel and returns the raw interaction block
// together with the non-reference period values labeling its columns.
func (e *Estimator) Interactions(p *model.PanelData, opts Options) (*mat.Dense, []float64, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	d, err := e.buildDesign(p.Cohort, p.Period, opts)
	if err != nil {
		return nil, nil, err
	}
	return d.interactions, d.periodValues, nil
}

// CohortCoef keys an externally fitted cohort-by-event-time coefficient.
type CohortCoef struct {
	Period float64
	Cohort float64
}

// AggregateSunab re-aggregates externally fitted cohort-level coefficients
// into the event-study profile of an existing result, using the result's
// cohort shares as within-period weights. cohortVcov rows and columns must
// be ordered by ascending (Period, Cohort) key. The returned record keeps
// the cohort composition of the input result.
func (e *Estimator) AggregateSunab(result *model.SunAbrahamResult, cohortCoefs map[CohortCoef]float64, cohortVcov *mat.Dense) (*model.SunAbrahamResult, error) {
	if result == nil {
		return nil, fmt.Errorf("result is required")
	}
	if len(cohortCoefs) == 0 {
		return nil, fmt.Errorf("no cohort coefficients to aggregate")
	}
	nK := len(cohortCoefs)
	if r, c := cohortVcov.Dims(); r != nK || c != nK {
		return nil, fmt.Errorf("covariance is %dx%d but %d coefficients were given", r, c, nK)
	}

	keys := make([]CohortCoef, 0, nK)
	for k := range cohortCoefs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Period != keys[j].Period {
			return keys[i].Period < keys[j].Period
		}
		return keys[i].Cohort < keys[j].Cohort
	})

	eventTimes := make([]float64, 0)
	eventIdx := make(map[float64]int)
	cohortSet := make(map[float64]struct{})
	for _, k := range keys {
		if _, ok := eventIdx[k.Period]; !ok {
			eventIdx[k.Period] = len(eventTimes)
			eventTimes = append(eventTimes, k.Period)
		}
		cohortSet[k.Cohort] = struct{}{}
	}
	cohorts := make([]float64, 0, len(cohortSet))
	for c := range cohortSet {
		cohorts = append(cohorts, c)
	}
	sort.Float64s(cohorts)
	cohortRank := make(map[float64]int, len(cohorts))
	for i, c := range cohorts {
		cohortRank[c] = i
	}

	// Within-period weights come from the result's cohort shares when the
	// cohort sets line up, otherwise every cohort weighs equally.
	useShares := len(result.CohortShares) == len(cohorts)
	if !useShares {
		e.logger.Warn("Cohort shares do not match the aggregation cohorts, using equal weights",
			zap.Int("cohortShares", len(result.CohortShares)),
			zap.Int("cohorts", len(cohorts)))
	}
	weightOf := func(c float64) float64 {
		if useShares {
			return result.CohortShares[cohortRank[c]]
		}
		return 1
	}

	nP := len(eventTimes)
	lambda := mat.NewDense(nK, nP, nil)
	bucketTotal := make([]float64, nP)
	for i, k := range keys {
		w := weightOf(k.Cohort)
		lambda.Set(i, eventIdx[k.Period], w)
		bucketTotal[eventIdx[k.Period]] += w
	}
	attByEvent := make([]float64, nP)
	for i, k := range keys {
		b := eventIdx[k.Period]
		if bucketTotal[b] > 0 {
			lambda.Set(i, b, lambda.At(i, b)/bucketTotal[b])
			attByEvent[b] += lambda.At(i, b) * cohortCoefs[k]
		} else {
			lambda.Set(i, b, 0)
		}
	}

	var tmp mat.Dense
	tmp.Mul(lambda.T(), cohortVcov)
	vcovEvent := mat.NewDense(nP, nP, nil)
	vcovEvent.Mul(&tmp, lambda)
	seByEvent := make([]float64, nP)
	for b := 0; b < nP; b++ {
		if v := vcovEvent.At(b, b); v > 0 {
			seByEvent[b] = math.Sqrt(v)
		}
	}

	out := *result
	out.AttByEvent = attByEvent
	out.SeByEvent = seByEvent
	out.EventTimes = eventTimes
	out.Vcov = denseToRows(vcovEvent)
	out.NPeriods = nP
	out.Params.Aggregated = true
	out.Params.Status = model.StatusOK
	if result.Params.ATT {
		att, seAtt := averagePostTreatment(attByEvent, eventTimes, vcovEvent)
		out.Att = &att
		out.SeAtt = &seAtt
	}
	return &out, nil
}
