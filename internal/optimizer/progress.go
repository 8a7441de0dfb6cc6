package optimizer

import "fmt"

// ProgressStatus is the lifecycle state of one file in a batch.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent reports a status change for one file of a batch.
type ProgressEvent struct {
	Batch   int            `json:"batch"`
	Path    string         `json:"path"`
	Status  ProgressStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// FormatProgress renders ev as one status line, prefixed by its batch
// number.
func FormatProgress(ev ProgressEvent) string {
	var mark, tail string
	switch ev.Status {
	case ProgressPending:
		mark, tail = "○", " (pending)"
	case ProgressWorking:
		mark, tail = "●", "..."
	case ProgressComplete:
		mark = "✓"
	case ProgressFailed:
		mark, tail = "✗", ": "+ev.Message
	default:
		mark, tail = "?", " (unknown status)"
	}
	return fmt.Sprintf("[batch %d] %s %s%s", ev.Batch+1, mark, ev.Path, tail)
}

// emit sends a progress event if a callback is registered.
func (o *Optimizer) emit(ev ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(ev)
	}
}
