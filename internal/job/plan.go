package job

import (
	"fmt"

	"github.com/maauso/trimtofit/internal/timeline"
)

// Plan is the outcome of resolving ranges without processing any audio.
type Plan struct {
	Mode      timeline.Mode    `json:"mode"`
	TotalMs   int64            `json:"total_ms"`
	Keep      []timeline.Range `json:"keep"`
	KeptMs    int64            `json:"kept_ms"`
	RemovedMs int64            `json:"removed_ms"`
}

// NewPlan resolves ranges against totalMs.
func NewPlan(ranges []timeline.Range, totalMs int64, mode timeline.Mode) (Plan, error) {
	if totalMs < 0 {
		return Plan{}, fmt.Errorf("%w: negative duration %d", ErrInvalidRequest, totalMs)
	}

	keep, err := timeline.Resolve(ranges, totalMs, mode)
	if err != nil {
		return Plan{}, err
	}

	kept := timeline.Sum(keep)
	return Plan{
		Mode:      mode,
		TotalMs:   totalMs,
		Keep:      keep,
		KeptMs:    kept,
		RemovedMs: max(totalMs-kept, 0),
	}, nil
}
