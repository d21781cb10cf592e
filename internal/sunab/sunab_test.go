package sunab

import (
	"math"
	"testing"

	"go-sunab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relativePanel is a balanced two-cohort panel with a never-treated control
// group, pre-centered periods, and an exactly linear outcome: baseline 1,
// effect 0.5 at adoption, 1.0 one period later.
func relativePanel() *model.PanelData {
	inf := math.Inf(1)
	p := &model.PanelData{
		Cohort:  []float64{0, 0, 0, 1, 1, 1, inf, inf, inf},
		Period:  []float64{-1, 0, 1, -1, 0, 1, -1, 0, 1},
		Outcome: []float64{1, 1.5, 2, 1, 1.5, 2, 1, 1, 1},
	}
	p.Covariates = make([][]float64, 9)
	for i := range p.Covariates {
		p.Covariates[i] = []float64{1}
	}
	return p
}

func TestSunabValidation(t *testing.T) {
	e, _ := observedEstimator()

	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := e.Sunab(&model.PanelData{
			Cohort: []float64{1, 2},
			Period: []float64{0, 1, 2},
		}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "same length")
	})

	t.Run("unknown special reference period", func(t *testing.T) {
		_, err := e.Sunab(&model.PanelData{
			Cohort: []float64{0, 1},
			Period: []float64{0, 1},
		}, Options{RefPeriodSpec: ".X"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown special reference period")
	})

	t.Run("bin and bin_c together", func(t *testing.T) {
		_, err := e.Sunab(&model.PanelData{
			Cohort: []float64{0, 1},
			Period: []float64{0, 1},
		}, Options{Bin: "bin::2", BinC: "bin::2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cannot use 'bin' with")
	})

	t.Run("bin with relative periods", func(t *testing.T) {
		_, err := e.Sunab(&model.PanelData{
			Cohort: []float64{1, 1, 1},
			Period: []float64{-1, 0, 1},
		}, Options{Bin: "bin::2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cannot use 'bin' when 'period' contains relative")
	})

	t.Run("no cohort ever observed at adoption", func(t *testing.T) {
		_, err := e.Sunab(&model.PanelData{
			Cohort: []float64{10, 11, 12},
			Period: []float64{0, 1, 2},
		}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No cohort values found in period values")
	})
}

func TestSunabEmptyResult(t *testing.T) {
	t.Run("only reference cohorts remain", func(t *testing.T) {
		e, logs := observedEstimator()
		// Both units only have pre-treatment observations, so every cohort
		// joins the never-treated reference pool.
		res, err := e.Sunab(&model.PanelData{
			Cohort: []float64{1, 2},
			Period: []float64{-1, -1},
		}, Options{})

		require.NoError(t, err)
		assert.Equal(t, model.StatusNoValidObservations, res.Params.Status)
		assert.Empty(t, res.AttByEvent)
		assert.Empty(t, res.EventTimes)
		assert.Equal(t, 0, res.NCohorts)
		assert.Equal(t, 0, res.NPeriods)
		require.NotNil(t, res.Att)
		assert.True(t, math.IsNaN(*res.Att))
		assert.True(t, math.IsNaN(*res.SeAtt))
		assert.Equal(t, 1, logs.FilterMessage("No observations remain after removing reference cohorts").Len())
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("too few observations collapse to the empty result", func(t *testing.T) {
		e, logs := observedEstimator()
		p := &model.PanelData{
			Cohort:     []float64{0, 0, 1},
			Period:     []float64{-1, 0, 0},
			Outcome:    []float64{1, 2, 3},
			Covariates: [][]float64{{1}, {1}, {1}},
		}
		res, err := e.Sunab(p, Options{})

		require.NoError(t, err)
		assert.Equal(t, model.StatusNoValidObservations, res.Params.Status)
		assert.Equal(t, 1, logs.FilterMessage("Insufficient observations for estimation").Len())
	})
}

func TestSunabInteractionsOnly(t *testing.T) {
	e, _ := observedEstimator()
	p := relativePanel()
	p.Outcome = nil
	p.Covariates = nil

	res, err := e.Sunab(p, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInteractionsOnly, res.Params.Status)
	assert.False(t, res.Params.Aggregated)
	require.NotNil(t, res.Att)
	assert.Equal(t, 0.0, *res.Att)
	assert.Equal(t, 0.0, *res.SeAtt)
	assert.Equal(t, []float64{0, 1}, res.EventTimes)
	assert.Equal(t, 2, res.NCohorts)
}

func TestSunabEndToEnd(t *testing.T) {
	t.Run("relative panel", func(t *testing.T) {
		e, logs := observedEstimator()
		res, err := e.Sunab(relativePanel(), Options{})

		require.NoError(t, err)
		assert.Equal(t, model.StatusOK, res.Params.Status)
		assert.True(t, res.Params.Aggregated)
		assert.Equal(t, []float64{0, 1}, res.EventTimes)
		require.Len(t, res.AttByEvent, 2)
		assert.InDelta(t, 0.5, res.AttByEvent[0], 1e-8)
		assert.InDelta(t, 1.0, res.AttByEvent[1], 1e-8)
		assert.Nil(t, res.Att)
		assert.Equal(t, "dynamic", res.AggregationType())
		assert.Equal(t, 9, res.Params.NObs)
		assert.Equal(t, 2, res.NCohorts)
		assert.Equal(t, 2, res.NPeriods)
		assert.Equal(t, 0, logs.Len())

		assert.Len(t, res.SeByEvent, len(res.AttByEvent))
		assert.Len(t, res.EventTimes, len(res.AttByEvent))
		assert.Len(t, res.Vcov, len(res.AttByEvent))

		sum := 0.0
		for _, s := range res.CohortShares {
			sum += s
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	})

	t.Run("calendar panel centers periods", func(t *testing.T) {
		e, _ := observedEstimator()
		inf := math.Inf(1)
		p := &model.PanelData{
			// Adoption in 2001 and 2002, observed 2000-2002.
			Cohort:  []float64{2001, 2001, 2001, 2002, 2002, 2002, inf, inf, inf},
			Period:  []float64{2000, 2001, 2002, 2000, 2001, 2002, 2000, 2001, 2002},
			Outcome: []float64{1, 1.5, 2, 1, 1, 1.5, 1, 1, 1},
		}
		p.Covariates = make([][]float64, 9)
		for i := range p.Covariates {
			p.Covariates[i] = []float64{1}
		}

		res, err := e.Sunab(p, Options{})
		require.NoError(t, err)
		assert.Equal(t, model.StatusOK, res.Params.Status)
		assert.Contains(t, res.EventTimes, 0.0)
	})

	t.Run("overall average on request", func(t *testing.T) {
		e, _ := observedEstimator()
		res, err := e.SunabATT(relativePanel(), Options{})

		require.NoError(t, err)
		require.NotNil(t, res.Att)
		assert.InDelta(t, 0.75, *res.Att, 1e-8)
		assert.Equal(t, "overall", res.AggregationType())
		assert.True(t, res.Params.ATT)
	})

	t.Run("disaggregated coefficients", func(t *testing.T) {
		e, _ := observedEstimator()
		res, err := e.Sunab(relativePanel(), Options{NoAgg: true})

		require.NoError(t, err)
		assert.False(t, res.Params.Aggregated)
		require.Len(t, res.AttByEvent, 2)
		assert.InDelta(t, 0.5, res.AttByEvent[0], 1e-8)
		assert.InDelta(t, 1.0, res.AttByEvent[1], 1e-8)
		assert.Equal(t, []float64{0, 1}, res.EventTimes)
	})

	t.Run("rows with a missing cohort are excluded from the fit", func(t *testing.T) {
		e, _ := observedEstimator()
		p := relativePanel()
		p.Cohort = append(p.Cohort, math.NaN())
		p.Period = append(p.Period, 0)
		p.Outcome = append(p.Outcome, 100)
		p.Covariates = append(p.Covariates, []float64{1})

		res, err := e.Sunab(p, Options{})
		require.NoError(t, err)
		assert.Equal(t, 9, res.Params.NObs)
		assert.InDelta(t, 0.5, res.AttByEvent[0], 1e-8)
		assert.InDelta(t, 1.0, res.AttByEvent[1], 1e-8)
	})

	t.Run("outcome without covariates is still estimated", func(t *testing.T) {
		e, _ := observedEstimator()
		p := relativePanel()
		p.Covariates = nil

		res, err := e.Sunab(p, Options{})
		require.NoError(t, err)
		assert.Equal(t, model.StatusOK, res.Params.Status)
		// With one-hot columns and no intercept, each coefficient is the
		// mean outcome of its event time.
		require.Len(t, res.AttByEvent, 2)
		assert.InDelta(t, 1.5, res.AttByEvent[0], 1e-8)
		assert.InDelta(t, 2.0, res.AttByEvent[1], 1e-8)
		assert.Equal(t, 9, res.Params.NObs)
	})

	t.Run("explicit reference cohort", func(t *testing.T) {
		e, _ := observedEstimator()
		p := relativePanel()
		res, err := e.Sunab(p, Options{RefCohorts: []float64{1}})

		require.NoError(t, err)
		assert.Equal(t, model.StatusOK, res.Params.Status)
		assert.Equal(t, []float64{1}, res.Params.RefCohorts)
	})
}

func TestSunabInteractionsAccessor(t *testing.T) {
	e, _ := observedEstimator()
	m, periodValues, err := e.Interactions(relativePanel(), Options{})

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, periodValues)
	rows, cols := m.Dims()
	assert.Equal(t, 9, rows)
	assert.Equal(t, 2, cols)
	// Never-treated rows stay zero.
	assert.Equal(t, []float64{0, 0}, m.RawRowView(6))
	// Treated rows one-hot their event time.
	assert.Equal(t, []float64{1, 0}, m.RawRowView(1))
	assert.Equal(t, []float64{0, 1}, m.RawRowView(2))
}

func TestAggregateSunab(t *testing.T) {
	e, _ := observedEstimator()

	base := &model.SunAbrahamResult{
		CohortShares: []float64{0.5, 0.5},
		NCohorts:     2,
		Params:       model.EstimationParams{Status: model.StatusOK, Aggregated: false},
	}
	coefs := map[CohortCoef]float64{
		{Period: -1, Cohort: 0}: 0.1,
		{Period: -1, Cohort: 1}: 0.2,
		{Period: 0, Cohort: 0}:  0.3,
		{Period: 0, Cohort: 1}:  0.4,
		{Period: 1, Cohort: 0}:  0.5,
		{Period: 1, Cohort: 1}:  0.6,
	}
	// Rows ordered by ascending (period, cohort) key.
	vcov := diagDense(0.01, 0.02, 0.03, 0.04, 0.05, 0.06)

	t.Run("re-aggregates by cohort share", func(t *testing.T) {
		res, err := e.AggregateSunab(base, coefs, vcov)
		require.NoError(t, err)

		assert.Equal(t, []float64{-1, 0, 1}, res.EventTimes)
		require.Len(t, res.AttByEvent, 3)
		assert.InDelta(t, 0.15, res.AttByEvent[0], 1e-12)
		assert.InDelta(t, 0.35, res.AttByEvent[1], 1e-12)
		assert.InDelta(t, 0.55, res.AttByEvent[2], 1e-12)
		assert.InDelta(t, 0.25*(0.01+0.02), res.Vcov[0][0], 1e-12)
		assert.InDelta(t, 0.25*(0.03+0.04), res.Vcov[1][1], 1e-12)
		assert.True(t, res.Params.Aggregated)
		assert.Equal(t, model.StatusOK, res.Params.Status)
		assert.Equal(t, 3, res.NPeriods)
		// Cohort composition carries over from the input result.
		assert.Equal(t, base.CohortShares, res.CohortShares)
	})

	t.Run("mismatched cohort shares warn and weigh equally", func(t *testing.T) {
		e, logs := observedEstimator()
		skewed := &model.SunAbrahamResult{
			CohortShares: []float64{1.0}, // one share, two cohorts in the keys
			Params:       model.EstimationParams{Status: model.StatusOK},
		}

		res, err := e.AggregateSunab(skewed, coefs, vcov)
		require.NoError(t, err)
		assert.InDelta(t, 0.15, res.AttByEvent[0], 1e-12)
		assert.Equal(t, 1, logs.FilterMessage("Cohort shares do not match the aggregation cohorts, using equal weights").Len())
	})

	t.Run("rejects empty coefficients", func(t *testing.T) {
		_, err := e.AggregateSunab(base, nil, vcov)
		assert.Error(t, err)
	})

	t.Run("rejects mismatched covariance", func(t *testing.T) {
		_, err := e.AggregateSunab(base, coefs, diagDense(0.01, 0.02))
		assert.Error(t, err)
	})
}
