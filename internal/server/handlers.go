package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/media"
	"github.com/maauso/trimtofit/internal/storage"
	"github.com/maauso/trimtofit/internal/timeline"
)

// JobService is the part of job.Service the API depends on.
type JobService interface {
	Submit(ctx context.Context, req job.Request) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context) ([]*job.Job, error)
	DeleteJob(ctx context.Context, id string) error
	Plan(ranges []timeline.Range, totalMs int64, mode timeline.Mode) (job.Plan, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   JobService
	validator *validator.Validate
	logger    *slog.Logger
	dataDir   string
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithDataDir confines every input and output path of a job request to dir.
// Relative paths are resolved against it. An empty dir leaves paths as sent.
func WithDataDir(dir string) HandlerOption {
	return func(h *Handlers) {
		h.dataDir = dir
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service JobService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateTrimJob handles POST /jobs/trim requests.
func (h *Handlers) CreateTrimJob(w http.ResponseWriter, r *http.Request) {
	var req TrimJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.confine(w, &req.InputPath, &req.OutputPath) {
		return
	}
	h.submit(w, r, job.TrimRequest{
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Mode:       timeline.Mode(req.Mode),
		Ranges:     toRanges(req.Ranges),
		PushToS3:   req.PushToS3,
	})
}

// CreateSpeedJob handles POST /jobs/speed requests.
func (h *Handlers) CreateSpeedJob(w http.ResponseWriter, r *http.Request) {
	var req SpeedJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.confine(w, &req.InputPath, &req.OutputPath) {
		return
	}
	h.submit(w, r, job.SpeedRequest{
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Factor:     req.Factor,
		PushToS3:   req.PushToS3,
	})
}

// CreateConvertJob handles POST /jobs/convert requests.
func (h *Handlers) CreateConvertJob(w http.ResponseWriter, r *http.Request) {
	var req ConvertJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.confine(w, &req.InputPath, &req.OutputPath) {
		return
	}
	h.submit(w, r, job.ConvertRequest{
		InputPath:  req.InputPath,
		Format:     req.Format,
		OutputPath: req.OutputPath,
		PushToS3:   req.PushToS3,
	})
}

// CreateMergeJob handles POST /jobs/merge requests.
func (h *Handlers) CreateMergeJob(w http.ResponseWriter, r *http.Request) {
	var req MergeJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	paths := []*string{&req.OutputPath}
	for i := range req.InputPaths {
		paths = append(paths, &req.InputPaths[i])
	}
	if !h.confine(w, paths...) {
		return
	}
	h.submit(w, r, job.MergeRequest{
		InputPaths: req.InputPaths,
		OutputPath: req.OutputPath,
		PushToS3:   req.PushToS3,
	})
}

// Plan handles POST /plan requests. It resolves ranges without running a job.
func (h *Handlers) Plan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.service.Plan(toRanges(req.Ranges), req.TotalMs, timeline.Mode(req.Mode))
	if err != nil {
		status, code := classify(err)
		writeError(w, status, err.Error(), code)
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{
		Mode:      string(plan.Mode),
		TotalMs:   plan.TotalMs,
		Keep:      fromRanges(plan.Keep),
		KeptMs:    plan.KeptMs,
		RemovedMs: plan.RemovedMs,
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, newJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests. Only finished jobs can be deleted.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	err := h.service.DeleteJob(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "job is still running", "JOB_NOT_FINISHED")
	default:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "INTERNAL_ERROR")
	}
}

// decode reads and validates a JSON body into dst. On failure it writes the
// error response and returns false.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// confine rewrites paths in place to absolute paths under the data directory.
// On failure it writes the error response and returns false.
func (h *Handlers) confine(w http.ResponseWriter, paths ...*string) bool {
	if h.dataDir == "" {
		return true
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		resolved, err := storage.Confine(h.dataDir, *p)
		if err != nil {
			h.logger.Warn("request path rejected",
				slog.String("path", *p),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, storage.ErrOutsideDataDir) {
				writeError(w, http.StatusForbidden, "path is outside the data directory", "PATH_NOT_ALLOWED")
			} else {
				writeError(w, http.StatusBadRequest, "invalid path", "INVALID_PATH")
			}
			return false
		}
		*p = resolved
	}
	return true
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, req job.Request) {
	created, err := h.service.Submit(r.Context(), req)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to create job", slog.String("error", err.Error()))
			writeError(w, status, "failed to create job", code)
			return
		}
		writeError(w, status, err.Error(), code)
		return
	}

	h.logger.Info("job created",
		slog.String("job_id", created.ID),
		slog.String("kind", string(created.Kind)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// classify maps domain errors to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, timeline.ErrInvalidRange):
		return http.StatusBadRequest, "INVALID_RANGE"
	case errors.Is(err, job.ErrInvalidRequest),
		errors.Is(err, job.ErrNoInputs),
		errors.Is(err, timeline.ErrUnknownMode),
		errors.Is(err, media.ErrInvalidSpeed),
		errors.Is(err, media.ErrUnsupportedFormat):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	default:
		return http.StatusInternalServerError, "JOB_CREATION_FAILED"
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
