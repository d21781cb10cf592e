package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go-sunab/internal/model"
	"go-sunab/pkg/utils"
)

// Load reads panel observations from the configured source and assembles
// the columns the estimator consumes. An intercept column of ones is
// prepended to the covariates when requested.
func Load(ctx context.Context, src model.Source, cols model.Columns, intercept bool) (*model.PanelData, error) {
	if cols.Cohort == "" || cols.Period == "" {
		return nil, fmt.Errorf("columns.cohort and columns.period are required")
	}

	var rows []map[string]float64
	var err error
	switch strings.ToLower(src.Type) {
	case "csv":
		rows, err = loadCSV(ctx, src.URL)
	case "json":
		rows, err = loadJSON(ctx, src.URL)
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("source %s contains no observations", src.URL)
	}

	required := []string{cols.Cohort, cols.Period}
	if cols.Outcome != "" {
		required = append(required, cols.Outcome)
	}
	if cols.Weights != "" {
		required = append(required, cols.Weights)
	}
	required = append(required, cols.Covariates...)
	for _, name := range required {
		if _, ok := rows[0][name]; !ok {
			return nil, fmt.Errorf("source %s is missing column %q", src.URL, name)
		}
	}

	n := len(rows)
	p := &model.PanelData{
		Cohort: make([]float64, n),
		Period: make([]float64, n),
	}
	if cols.Outcome != "" {
		p.Outcome = make([]float64, n)
	}
	if cols.Weights != "" {
		p.Weights = make([]float64, n)
	}
	nCov := len(cols.Covariates)
	if intercept {
		nCov++
	}
	if nCov > 0 {
		p.Covariates = make([][]float64, n)
	}

	for i, row := range rows {
		p.Cohort[i] = row[cols.Cohort]
		p.Period[i] = row[cols.Period]
		if p.Outcome != nil {
			p.Outcome[i] = row[cols.Outcome]
		}
		if p.Weights != nil {
			p.Weights[i] = row[cols.Weights]
		}
		if nCov > 0 {
			cov := make([]float64, 0, nCov)
			if intercept {
				cov = append(cov, 1)
			}
			for _, name := range cols.Covariates {
				cov = append(cov, row[name])
			}
			p.Covariates[i] = cov
		}
	}
	return p, nil
}

func openSource(ctx context.Context, url string) (io.ReadCloser, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
		}
		return resp.Body, nil
	}
	f, err := os.Open(url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return f, nil
}

func loadCSV(ctx context.Context, url string) ([]map[string]float64, error) {
	rc, err := openSource(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]float64
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		row := make(map[string]float64, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = utils.ParseCell(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func loadJSON(ctx context.Context, url string) ([]map[string]float64, error) {
	rc, err := openSource(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var raw []map[string]interface{}
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %w", err)
	}
	rows := make([]map[string]float64, 0, len(raw))
	for _, rec := range raw {
		row := make(map[string]float64, len(rec))
		for k, v := range rec {
			row[k] = utils.Numeric(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
