package checkpoint

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/operation"
)

// Run states.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Tally counts outcomes by status across the steps of a run.
type Tally struct {
	Done    int `json:"done"    yaml:"done"`
	Failed  int `json:"failed"  yaml:"failed"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Add counts outcomes.
func (t *Tally) Add(outcomes []operation.Outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case operation.StatusFailed:
			t.Failed++
		case operation.StatusSkipped:
			t.Skipped++
		default:
			t.Done++
		}
	}
}

// RunState is the persisted state of one run.
type RunState struct {
	// RunID is a ULID assigned when the run starts.
	RunID string `json:"run_id" yaml:"run_id"`

	// RunFile is the path of the run definition the run was started from.
	RunFile string `json:"run_file" yaml:"run_file"`

	OperationID string         `json:"operation_id" yaml:"operation_id"`
	RecordType  string         `json:"record_type"  yaml:"record_type"`
	Status      string         `json:"status"       yaml:"status"`
	Progress    batch.Progress `json:"progress"     yaml:"progress"`
	Outcomes    Tally          `json:"outcomes"     yaml:"outcomes"`

	// LastError holds the error that failed the run, if any.
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewRunState creates the state of a new run with a fresh run ID.
func NewRunState(runFile, operationID, recordType string, batchSize int) *RunState {
	now := time.Now()
	return &RunState{
		RunID:       ulid.Make().String(),
		RunFile:     runFile,
		OperationID: operationID,
		RecordType:  recordType,
		Status:      StatusRunning,
		Progress:    batch.Progress{BatchSize: batchSize},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Touch records a modification.
func (s *RunState) Touch() {
	s.UpdatedAt = time.Now()
}

// Finished reports whether the run has stopped for good.
func (s *RunState) Finished() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Age returns the duration since the run was created.
func (s *RunState) Age() time.Duration {
	return time.Since(s.CreatedAt)
}

// MarshalJSON implements json.Marshaler for RunState.
// Times are formatted as RFC3339 for readability in JSON files.
func (s *RunState) MarshalJSON() ([]byte, error) {
	type Alias RunState
	return json.Marshal(&struct {
		*Alias

		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}{
		Alias:     (*Alias)(s),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	})
}

// UnmarshalJSON implements json.Unmarshaler for RunState.
func (s *RunState) UnmarshalJSON(data []byte) error {
	if s == nil {
		return errors.New("cannot unmarshal into nil RunState")
	}
	type Alias RunState
	aux := &struct {
		*Alias

		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	s.CreatedAt, err = time.Parse(time.RFC3339, aux.CreatedAt)
	if err != nil {
		return err
	}
	s.UpdatedAt, err = time.Parse(time.RFC3339, aux.UpdatedAt)
	return err
}
