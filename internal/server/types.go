// Package server provides the HTTP API for submitting and tracking audio jobs.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/timeline"
)

// RangeDTO is a time range in milliseconds.
type RangeDTO struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// TrimJobRequest is the HTTP request body for POST /jobs/trim.
type TrimJobRequest struct {
	// InputPath is the audio file to trim, as seen by the server.
	InputPath string `json:"input_path" validate:"required"`
	// OutputPath defaults to "<base>_trimmed<ext>" next to the input.
	OutputPath string `json:"output_path,omitempty"`
	// Mode is "remove" to cut the ranges out or "keep" to keep only them.
	Mode string `json:"mode" validate:"required,oneof=remove keep"`
	// Ranges are the intervals the mode applies to.
	Ranges []RangeDTO `json:"ranges" validate:"dive"`
	// PushToS3 uploads the result when S3 is configured.
	PushToS3 bool `json:"push_to_s3"`
}

// SpeedJobRequest is the HTTP request body for POST /jobs/speed.
type SpeedJobRequest struct {
	InputPath  string  `json:"input_path" validate:"required"`
	OutputPath string  `json:"output_path,omitempty"`
	Factor     float64 `json:"factor" validate:"required,gte=0.5,lte=2"`
	PushToS3   bool    `json:"push_to_s3"`
}

// ConvertJobRequest is the HTTP request body for POST /jobs/convert.
type ConvertJobRequest struct {
	InputPath  string `json:"input_path" validate:"required"`
	Format     string `json:"format" validate:"required,oneof=mp3 wav flac ogg opus m4a aac"`
	OutputPath string `json:"output_path,omitempty"`
	PushToS3   bool   `json:"push_to_s3"`
}

// MergeJobRequest is the HTTP request body for POST /jobs/merge.
type MergeJobRequest struct {
	InputPaths []string `json:"input_paths" validate:"required,min=1,dive,required"`
	OutputPath string   `json:"output_path" validate:"required"`
	PushToS3   bool     `json:"push_to_s3"`
}

// PlanRequest is the HTTP request body for POST /plan.
type PlanRequest struct {
	TotalMs int64      `json:"total_ms" validate:"gte=0"`
	Mode    string     `json:"mode" validate:"required,oneof=remove keep"`
	Ranges  []RangeDTO `json:"ranges" validate:"dive"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	// Progress is the fraction of completion (0-1).
	Progress float64 `json:"progress"`
	// Error contains any error message if the job failed.
	Error            string     `json:"error,omitempty"`
	InputPaths       []string   `json:"input_paths"`
	OutputPath       string     `json:"output_path,omitempty"`
	OutputURL        string     `json:"output_url,omitempty"`
	KeepRanges       []RangeDTO `json:"keep_ranges,omitempty"`
	SourceDurationMs int64      `json:"source_duration_ms,omitempty"`
	OutputDurationMs int64      `json:"output_duration_ms,omitempty"`
	SkippedInputs    []string   `json:"skipped_inputs,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for GET /jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// PlanResponse is the HTTP response for POST /plan.
type PlanResponse struct {
	Mode      string     `json:"mode"`
	TotalMs   int64      `json:"total_ms"`
	Keep      []RangeDTO `json:"keep"`
	KeptMs    int64      `json:"kept_ms"`
	RemovedMs int64      `json:"removed_ms"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func toRanges(in []RangeDTO) []timeline.Range {
	out := make([]timeline.Range, len(in))
	for i, r := range in {
		out[i] = timeline.Range{Start: r.StartMs, End: r.EndMs}
	}
	return out
}

func fromRanges(in []timeline.Range) []RangeDTO {
	out := make([]RangeDTO, len(in))
	for i, r := range in {
		out[i] = RangeDTO{StartMs: r.Start, EndMs: r.End}
	}
	return out
}

func newJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:               j.ID,
		Kind:             string(j.Kind),
		Status:           string(j.Status),
		Progress:         j.Progress,
		Error:            j.Error,
		InputPaths:       j.InputPaths,
		OutputPath:       j.OutputPath,
		OutputURL:        j.OutputURL,
		SourceDurationMs: j.SourceDurationMs,
		OutputDurationMs: j.OutputDurationMs,
		SkippedInputs:    j.SkippedInputs,
		CreatedAt:        j.CreatedAt,
	}
	if len(j.KeepRanges) > 0 {
		resp.KeepRanges = fromRanges(j.KeepRanges)
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}
