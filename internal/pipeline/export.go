package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-sunab/internal/model"

	"gonum.org/v1/gonum/stat/distuv"
)

// confidenceLevel is the coverage of the exported confidence bands.
const confidenceLevel = 0.95

// ExportResult writes the event-study profile of a result to the job's
// output directory. The file extension picks the format, CSV by default.
// Returns the written path.
func ExportResult(jobID, file string, res *model.SunAbrahamResult) (string, error) {
	dir := filepath.Join("exports", jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(file))

	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return path, exportJSON(jobID, path, res)
	default:
		return path, exportCSV(path, res)
	}
}

// critValue is the two-sided normal critical value for the band coverage.
func critValue() float64 {
	n := distuv.Normal{Mu: 0, Sigma: 1}
	return n.Quantile(1 - (1-confidenceLevel)/2)
}

func exportCSV(path string, res *model.SunAbrahamResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"event_time", "att", "se", "ci_lower", "ci_upper"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	crit := critValue()
	for i := range res.AttByEvent {
		att := res.AttByEvent[i]
		se := res.SeByEvent[i]
		row := []string{
			formatCell(res.EventTimes[i]),
			formatCell(att),
			formatCell(se),
			formatCell(att - crit*se),
			formatCell(att + crit*se),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func exportJSON(jobID, path string, res *model.SunAbrahamResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	crit := critValue()
	lower := make([]float64, len(res.AttByEvent))
	upper := make([]float64, len(res.AttByEvent))
	for i := range res.AttByEvent {
		lower[i] = res.AttByEvent[i] - crit*res.SeByEvent[i]
		upper[i] = res.AttByEvent[i] + crit*res.SeByEvent[i]
	}

	payload := map[string]interface{}{
		"exportInfo": map[string]interface{}{
			"jobId":           jobID,
			"exportedAt":      time.Now().UTC(),
			"confidenceLevel": confidenceLevel,
		},
		"eventTimes":      res.EventTimes,
		"attByEvent":      res.AttByEvent,
		"seByEvent":       res.SeByEvent,
		"ciLower":         lower,
		"ciUpper":         upper,
		"cohortShares":    res.CohortShares,
		"aggregationType": res.AggregationType(),
		"status":          res.Params.Status,
	}
	if res.Att != nil && !math.IsNaN(*res.Att) {
		payload["att"] = *res.Att
	}
	if res.SeAtt != nil && !math.IsNaN(*res.SeAtt) {
		payload["seAtt"] = *res.SeAtt
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
