package pipeline

import (
	"context"
	"fmt"
	"time"

	"go-sunab/internal/dataset"
	"go-sunab/internal/model"
	"go-sunab/internal/store"
	"go-sunab/internal/sunab"
	"go-sunab/pkg/utils"

	"go.uber.org/zap"
)

// Stage names in execution order, for progress reporting.
var Stages = []string{"loading", "estimating", "persisting", "exporting"}

// Runner executes estimation jobs end to end: load the panel, run the
// estimator, persist the result, export files.
type Runner struct {
	store  *store.Store
	logger *zap.Logger
}

// NewRunner wires a job runner. A nil logger disables logging.
func NewRunner(st *store.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: st, logger: logger}
}

// Run executes one job. Status transitions and errors are persisted; the
// progress callback, when set, is invoked after each completed stage.
func (r *Runner) Run(ctx context.Context, jobID string, job model.EstimationJobSpec, progress func(stage string)) (err error) {
	start := time.Now()
	r.logger.Info("Starting estimation job", zap.String("jobId", jobID))

	r.store.UpdateJobStatus(jobID, "running")
	defer func() {
		if err != nil {
			r.store.UpdateJobStatus(jobID, "failed")
			r.store.SaveJobError(jobID, err)
			r.logger.Error("Estimation job failed", zap.String("jobId", jobID), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(job.JobTimeout))
	defer cancel()

	advance := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	// Load.
	r.store.UpdateJobStatus(jobID, "loading")
	panel, err := dataset.Load(ctx, job.Source, job.Columns, job.Estimator.Intercept)
	if err != nil {
		return fmt.Errorf("loading panel: %w", err)
	}
	r.logger.Info("Panel loaded",
		zap.String("jobId", jobID),
		zap.Int("observations", panel.Len()))
	advance("loading")

	// Estimate.
	r.store.UpdateJobStatus(jobID, "estimating")
	estimator := sunab.NewEstimator(r.logger)
	result, err := estimator.Sunab(panel, sunab.OptionsFromSpec(job.Estimator))
	if err != nil {
		return fmt.Errorf("estimating: %w", err)
	}
	advance("estimating")

	// Persist.
	r.store.UpdateJobStatus(jobID, "persisting")
	if err := r.store.SaveResult(jobID, result); err != nil {
		return fmt.Errorf("persisting result: %w", err)
	}
	advance("persisting")

	// Export.
	if job.Export != nil && job.Export.File != "" {
		r.store.UpdateJobStatus(jobID, "exporting")
		path, err := ExportResult(jobID, job.Export.File, result)
		if err != nil {
			return fmt.Errorf("exporting result: %w", err)
		}
		r.logger.Info("Result exported", zap.String("jobId", jobID), zap.String("path", path))
	}
	advance("exporting")

	r.store.UpdateJobStatus(jobID, "completed")
	r.logger.Info("Estimation job completed",
		zap.String("jobId", jobID),
		zap.String("status", result.Params.Status),
		zap.Duration("duration", time.Since(start)))
	return nil
}
