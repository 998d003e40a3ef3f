// Package job provides the Job aggregate for audio editing jobs, the
// repositories that persist it, and the service that runs the pipelines.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/trimtofit/internal/job/id"
	"github.com/maauso/trimtofit/internal/timeline"
)

// Kind is the pipeline a job runs.
type Kind string

const (
	// KindTrim removes or keeps time ranges of one input.
	KindTrim Kind = "trim"
	// KindSpeed changes the tempo of one input.
	KindSpeed Kind = "speed"
	// KindConvert re-encodes one input into another container.
	KindConvert Kind = "convert"
	// KindMerge concatenates several inputs.
	KindMerge Kind = "merge"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindTrim, KindSpeed, KindConvert, KindMerge:
		return true
	}
	return false
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job is waiting for a worker slot.
	StatusQueued Status = "QUEUED"
	// StatusLoading indicates the inputs are being decoded.
	StatusLoading Status = "LOADING"
	// StatusResolving indicates the keep ranges are being computed.
	StatusResolving Status = "RESOLVING"
	// StatusAssembling indicates slices are being concatenated.
	StatusAssembling Status = "ASSEMBLING"
	// StatusExporting indicates the output file is being written.
	StatusExporting Status = "EXPORTING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Pipelines that do not need a stage skip it, but never move backwards.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusLoading, StatusExporting, StatusFailed},
	StatusLoading:    {StatusResolving, StatusAssembling, StatusExporting, StatusFailed},
	StatusResolving:  {StatusAssembling, StatusFailed},
	StatusAssembling: {StatusExporting, StatusFailed},
	StatusExporting:  {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job is one audio editing operation and its outcome.
type Job struct {
	mu sync.RWMutex

	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`

	// Inputs.
	InputPaths  []string         `json:"input_paths"`
	Mode        timeline.Mode    `json:"mode,omitempty"`
	Ranges      []timeline.Range `json:"ranges,omitempty"`
	SpeedFactor float64          `json:"speed_factor,omitempty"`
	Format      string           `json:"format,omitempty"`
	OutputPath  string           `json:"output_path,omitempty"`
	PushToS3    bool             `json:"push_to_s3,omitempty"`

	// Results.
	KeepRanges       []timeline.Range `json:"keep_ranges,omitempty"`
	SourceDurationMs int64            `json:"source_duration_ms,omitempty"`
	OutputDurationMs int64            `json:"output_duration_ms,omitempty"`
	OutputURL        string           `json:"output_url,omitempty"`
	SkippedInputs    []string         `json:"skipped_inputs,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// New creates a new QUEUED job of the given kind with a generated ID.
func New(kind Kind) *Job {
	return NewWithID(id.Generate(), kind)
}

// NewWithID creates a new QUEUED job with the specified ID.
// Used when the ID is generated outside the package.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:         jobID,
		Kind:       kind,
		Status:     StatusQueued,
		InputPaths: make([]string, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	from := j.Status
	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	if from == StatusQueued {
		j.StartedAt = j.UpdatedAt
	}
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}
	if status == StatusCompleted {
		j.Progress = 1
	}

	return nil
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// GetProgress returns the current progress fraction (thread-safe).
func (j *Job) GetProgress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

// UpdateProgress records a progress fraction. Values are clamped to [0, 1]
// and progress never decreases.
func (j *Job) UpdateProgress(fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fraction = min(max(fraction, 0), 1)
	if fraction < j.Progress {
		return
	}
	j.Progress = fraction
	j.UpdatedAt = time.Now()
}

// SetKeepRanges records the resolved ranges and the source duration.
func (j *Job) SetKeepRanges(keep []timeline.Range, sourceMs int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.KeepRanges = slices.Clone(keep)
	j.SourceDurationMs = sourceMs
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output path, its duration, and an optional S3 URL.
func (j *Job) SetOutput(path string, durationMs int64, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.OutputDurationMs = durationMs
	j.OutputURL = url
	j.UpdatedAt = time.Now()
}

// SkipInput records an input that was left out of a merge.
func (j *Job) SkipInput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.SkippedInputs = append(j.SkippedInputs, path)
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.GetStatus().IsTerminal()
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:               j.ID,
		Kind:             j.Kind,
		Status:           j.Status,
		Progress:         j.Progress,
		Error:            j.Error,
		InputPaths:       slices.Clone(j.InputPaths),
		Mode:             j.Mode,
		Ranges:           slices.Clone(j.Ranges),
		SpeedFactor:      j.SpeedFactor,
		Format:           j.Format,
		OutputPath:       j.OutputPath,
		PushToS3:         j.PushToS3,
		KeepRanges:       slices.Clone(j.KeepRanges),
		SourceDurationMs: j.SourceDurationMs,
		OutputDurationMs: j.OutputDurationMs,
		OutputURL:        j.OutputURL,
		SkippedInputs:    slices.Clone(j.SkippedInputs),
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}
