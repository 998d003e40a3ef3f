package job

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/maauso/trimtofit/internal/media"
	"github.com/maauso/trimtofit/internal/storage"
	"github.com/maauso/trimtofit/internal/timeline"
)

// Static errors for job requests.
var (
	// ErrInvalidRequest is returned when a request is missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoInputs is returned when a merge has no usable input.
	ErrNoInputs = errors.New("no usable inputs")
)

// defaultMergeFormat is used when a merge output path has no extension.
const defaultMergeFormat = "mp3"

// Request describes a job to run. It is implemented by TrimRequest,
// SpeedRequest, ConvertRequest and MergeRequest.
type Request interface {
	// Validate reports whether the request can be turned into a job.
	Validate() error
	newJob() *Job
}

// TrimRequest removes or keeps time ranges of one input.
type TrimRequest struct {
	InputPath  string
	OutputPath string // defaults to "<base>_trimmed<ext>"
	Mode       timeline.Mode
	Ranges     []timeline.Range
	PushToS3   bool
}

// Validate implements Request.
func (r TrimRequest) Validate() error {
	if r.InputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidRequest)
	}
	if !r.Mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	for i, rg := range r.Ranges {
		if rg.End < rg.Start {
			return fmt.Errorf("%w: range %d %s", timeline.ErrInvalidRange, i, rg)
		}
	}
	return nil
}

func (r TrimRequest) newJob() *Job {
	j := New(KindTrim)
	j.InputPaths = []string{r.InputPath}
	j.Mode = r.Mode
	j.Ranges = slices.Clone(r.Ranges)
	j.OutputPath = withDefault(r.OutputPath, storage.DerivedPath(r.InputPath, "_trimmed", ""))
	j.PushToS3 = r.PushToS3
	return j
}

// SpeedRequest changes the tempo of one input without changing its pitch.
type SpeedRequest struct {
	InputPath  string
	OutputPath string // defaults to "<base>_speed_<factor>x<ext>"
	Factor     float64
	PushToS3   bool
}

// Validate implements Request.
func (r SpeedRequest) Validate() error {
	if r.InputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidRequest)
	}
	if r.Factor < media.MinSpeedFactor || r.Factor > media.MaxSpeedFactor {
		return fmt.Errorf("%w: got %.2f", media.ErrInvalidSpeed, r.Factor)
	}
	return nil
}

func (r SpeedRequest) newJob() *Job {
	j := New(KindSpeed)
	j.InputPaths = []string{r.InputPath}
	j.SpeedFactor = r.Factor
	j.OutputPath = withDefault(r.OutputPath, storage.DerivedPath(r.InputPath, fmt.Sprintf("_speed_%.2fx", r.Factor), ""))
	j.PushToS3 = r.PushToS3
	return j
}

// ConvertRequest re-encodes one input into another container.
type ConvertRequest struct {
	InputPath  string
	Format     string
	OutputPath string // defaults to "<base>_converted.<format>"
	PushToS3   bool
}

// Validate implements Request.
func (r ConvertRequest) Validate() error {
	if r.InputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidRequest)
	}
	if _, err := media.LookupContainer(r.Format); err != nil {
		return err
	}
	return nil
}

func (r ConvertRequest) newJob() *Job {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(r.Format)), ".")
	j := New(KindConvert)
	j.InputPaths = []string{r.InputPath}
	j.Format = format
	j.OutputPath = withDefault(r.OutputPath, storage.DerivedPath(r.InputPath, "_converted", format))
	j.PushToS3 = r.PushToS3
	return j
}

// MergeRequest concatenates several inputs in order.
type MergeRequest struct {
	InputPaths []string
	OutputPath string
	PushToS3   bool
}

// Validate implements Request.
func (r MergeRequest) Validate() error {
	if len(r.InputPaths) == 0 {
		return ErrNoInputs
	}
	if r.OutputPath == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	}
	if f := media.FormatFromPath(r.OutputPath); f != "" {
		if _, err := media.LookupContainer(f); err != nil {
			return err
		}
	}
	return nil
}

func (r MergeRequest) newJob() *Job {
	j := New(KindMerge)
	j.InputPaths = slices.Clone(r.InputPaths)
	j.OutputPath = r.OutputPath
	j.Format = media.FormatFromPath(r.OutputPath)
	if j.Format == "" {
		j.Format = defaultMergeFormat
		j.OutputPath += "." + defaultMergeFormat
	}
	j.PushToS3 = r.PushToS3
	return j
}

func withDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
