// Package operation defines the pluggable unit of work applied to a queue of
// entities, the optional capabilities an operation may declare, and the
// catalog that resolves operation identifiers to configured instances.
package operation

import (
	"context"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/query"
	"github.com/rshade/bulkops/internal/storage"
)

// Status is the result state of a single queued item.
type Status string

// Outcome statuses.
const (
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is the per-item result of an operation.
type Outcome struct {
	Message string `json:"message" yaml:"message"`
	Status  Status `json:"status"  yaml:"status"`
}

// Done returns a successful outcome.
func Done(message string) Outcome {
	return Outcome{Message: message, Status: StatusDone}
}

// Failed returns a failed outcome.
func Failed(message string) Outcome {
	return Outcome{Message: message, Status: StatusFailed}
}

// Skipped returns a skipped outcome.
func Skipped(message string) Outcome {
	return Outcome{Message: message, Status: StatusSkipped}
}

// Operation is applied to the whole queue of one step in a single call.
//
// Returning a nil or empty slice means every item succeeded; the caller then
// reports the definition label once per queued entity. A non-empty slice is
// reported as-is and should hold one outcome per entity.
type Operation interface {
	ExecuteMultiple(ctx context.Context, entities []entity.Entity) ([]Outcome, error)
}

// Progress is the read-only view of the run cursor handed to operations.
type Progress struct {
	Offset    int  `json:"offset"          yaml:"offset"`
	Total     *int `json:"total,omitempty" yaml:"total,omitempty"`
	BatchSize int  `json:"batch_size"      yaml:"batch_size"`
	Steps     int  `json:"steps"           yaml:"steps"`
}

// ProgressAware operations receive the run progress before each step when
// their definition sets PassContext, and once at session initialization.
type ProgressAware interface {
	SetProgress(p Progress)
}

// ViewAware operations receive the full query rows of the current queue when
// their definition sets PassView.
type ViewAware interface {
	SetView(result *query.Result)
}

// Deps are the collaborators handed to an operation factory.
type Deps struct {
	RecordType string
	Storage    storage.Storage
}

// Factory builds a configured operation instance.
type Factory func(cfg map[string]any, deps Deps) (Operation, error)
