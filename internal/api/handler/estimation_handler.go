package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go-sunab/internal/model"
	"go-sunab/internal/pipeline"
	"go-sunab/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves the estimation API.
type Handler struct {
	store  *store.Store
	runner *pipeline.Runner
	logger *zap.Logger
}

// New wires the API handler.
func New(st *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  st,
		runner: pipeline.NewRunner(st, logger),
		logger: logger,
	}
}

// jobIDFromPath extracts the job ID segment from paths like
// /api/v1/estimations/{id} or /api/v1/estimations/{id}/result.
func jobIDFromPath(path, suffix string) string {
	p := strings.TrimPrefix(path, "/api/v1/estimations/")
	p = strings.TrimSuffix(p, suffix)
	return strings.Trim(p, "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// CreateEstimation godoc
// @Summary Submit an estimation job
// @Description Accepts an estimation job spec and runs it asynchronously
// @Tags estimations
// @Accept json
// @Produce json
// @Param job body model.EstimationJobSpec true "Estimation job spec"
// @Success 202 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/v1/estimations [post]
func (h *Handler) CreateEstimation(w http.ResponseWriter, r *http.Request) {
	var spec model.EstimationJobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if spec.Source.URL == "" {
		writeError(w, http.StatusBadRequest, "source.url is required")
		return
	}

	jobID := uuid.New().String()
	if err := h.store.SaveJob(jobID, spec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save job: "+err.Error())
		return
	}

	go func() {
		if err := h.runner.Run(context.Background(), jobID, spec, nil); err != nil {
			h.logger.Error("Background job failed", zap.String("jobId", jobID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  jobID,
		"status": "pending",
	})
}

// ListEstimations godoc
// @Summary List estimation jobs
// @Tags estimations
// @Produce json
// @Success 200 {array} map[string]interface{}
// @Router /api/v1/estimations [get]
func (h *Handler) ListEstimations(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetEstimation godoc
// @Summary Fetch a job's spec and status
// @Tags estimations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/estimations/{id} [get]
func (h *Handler) GetEstimation(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r.URL.Path, "")
	job, err := h.store.GetJob(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetEstimationResult godoc
// @Summary Fetch the event-study result of a job
// @Tags estimations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/estimations/{id}/result [get]
func (h *Handler) GetEstimationResult(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r.URL.Path, "/result")
	res, err := h.store.GetResult(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetEstimationErrors godoc
// @Summary Fetch the recorded errors of a job
// @Tags estimations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {array} map[string]interface{}
// @Router /api/v1/estimations/{id}/errors [get]
func (h *Handler) GetEstimationErrors(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDFromPath(r.URL.Path, "/errors")
	errs, err := h.store.GetJobErrors(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if errs == nil {
		errs = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, errs)
}
