package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregationType(t *testing.T) {
	t.Run("event-study profile is dynamic", func(t *testing.T) {
		r := &SunAbrahamResult{}
		assert.Equal(t, "dynamic", r.AggregationType())
	})

	t.Run("overall once the average is present", func(t *testing.T) {
		att := 0.15
		r := &SunAbrahamResult{Att: &att}
		assert.Equal(t, "overall", r.AggregationType())
	})
}

func TestPanelDataValidate(t *testing.T) {
	t.Run("valid panel", func(t *testing.T) {
		p := &PanelData{
			Cohort: []float64{1, 2},
			Period: []float64{0, 1},
		}
		assert.NoError(t, p.Validate())
		assert.Equal(t, 2, p.Len())
	})

	t.Run("period length mismatch", func(t *testing.T) {
		p := &PanelData{
			Cohort: []float64{1, 2},
			Period: []float64{0},
		}
		err := p.Validate()
		assert.ErrorContains(t, err, "same length")
	})

	t.Run("outcome length mismatch", func(t *testing.T) {
		p := &PanelData{
			Cohort:  []float64{1, 2},
			Period:  []float64{0, 1},
			Outcome: []float64{1},
		}
		assert.ErrorContains(t, p.Validate(), "same length")
	})

	t.Run("weights length mismatch", func(t *testing.T) {
		p := &PanelData{
			Cohort:  []float64{1, 2},
			Period:  []float64{0, 1},
			Weights: []float64{1, 1, 1},
		}
		assert.ErrorContains(t, p.Validate(), "same length")
	})
}
