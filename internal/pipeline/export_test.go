package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"testing"

	"go-sunab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *model.SunAbrahamResult {
	att := 0.75
	seAtt := 0.1
	return &model.SunAbrahamResult{
		AttByEvent:   []float64{0.5, 1.0},
		SeByEvent:    []float64{0.05, 0.08},
		EventTimes:   []float64{0, 1},
		CohortShares: []float64{0.5, 0.5},
		Att:          &att,
		SeAtt:        &seAtt,
		NCohorts:     2,
		NPeriods:     2,
		Params:       model.EstimationParams{Status: model.StatusOK, Aggregated: true, ATT: true, NObs: 9},
	}
}

// chdir changes the working directory for the duration of the test.
// (testing.T.Chdir requires Go 1.24; this toolchain is older.)
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestExportResultCSV(t *testing.T) {
	chdir(t, t.TempDir())

	path, err := ExportResult("job-1", "result.csv", sampleResult())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"event_time", "att", "se", "ci_lower", "ci_upper"}, records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "0.5", records[1][1])

	// Bands are att +/- 1.96 se at 95% coverage.
	lower, err := strconv.ParseFloat(records[1][3], 64)
	require.NoError(t, err)
	upper, err := strconv.ParseFloat(records[1][4], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.5-1.959964*0.05, lower, 1e-4)
	assert.InDelta(t, 0.5+1.959964*0.05, upper, 1e-4)
}

func TestExportResultJSON(t *testing.T) {
	chdir(t, t.TempDir())

	path, err := ExportResult("job-2", "result.json", sampleResult())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "overall", payload["aggregationType"])
	assert.InDelta(t, 0.75, payload["att"].(float64), 1e-12)
	assert.Len(t, payload["attByEvent"], 2)
	assert.Contains(t, payload, "ciLower")
	assert.Contains(t, payload, "ciUpper")
}
