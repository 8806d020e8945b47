package batch

import (
	"github.com/rshade/bulkops/internal/operation"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress is the cursor of a multi-step run.
//
// The caller owns it for the whole run and passes it to every step;
// PopulateQueue borrows it for the duration of the call and is the only
// writer. It serializes to JSON and YAML for checkpointing.
type Progress struct {
	// Offset is the position of the next step in the source.
	Offset int `json:"offset" yaml:"offset"`

	// Total is the source size, nil until the first step computes it.
	Total *int `json:"total,omitempty" yaml:"total,omitempty"`

	// BatchSize is the maximum queue length per step; 0 means DefaultBatchSize.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Steps is the number of completed populate calls.
	Steps int `json:"steps" yaml:"steps"`

	// Processed is the number of entities queued so far.
	Processed int `json:"processed" yaml:"processed"`

	// Skipped is the number of source items that did not resolve.
	Skipped int `json:"skipped" yaml:"skipped"`
}

// NewProgress creates a progress context for a run with the given batch size.
func NewProgress(batchSize int) *Progress {
	return &Progress{BatchSize: batchSize}
}

// Done reports whether the cursor has reached the end of the source.
// It is false until the total is known.
func (p *Progress) Done() bool {
	return p.Total != nil && p.Offset >= *p.Total
}

// Remaining returns the number of source items after the cursor, or -1 when
// the total is not known yet.
func (p *Progress) Remaining() int {
	if p.Total == nil {
		return -1
	}
	return max(*p.Total-p.Offset, 0)
}

// PercentComplete returns the completion percentage (0-100).
func (p *Progress) PercentComplete() float64 {
	if p.Total == nil {
		return 0
	}
	if *p.Total == 0 {
		return percentMultiplier
	}
	return (float64(min(p.Offset, *p.Total)) / float64(*p.Total)) * percentMultiplier
}

// Clone returns a copy that shares nothing with p.
func (p *Progress) Clone() Progress {
	c := *p
	if p.Total != nil {
		total := *p.Total
		c.Total = &total
	}
	return c
}

// Snapshot returns the read-only view handed to progress-aware operations.
func (p *Progress) Snapshot() operation.Progress {
	c := p.Clone()
	return operation.Progress{
		Offset:    c.Offset,
		Total:     c.Total,
		BatchSize: c.BatchSize,
		Steps:     c.Steps,
	}
}

// advance moves the cursor past a window of batchSize items, never beyond
// a known total and never backwards.
func (p *Progress) advance(batchSize int) {
	next := p.Offset + batchSize
	if p.Total != nil && next > *p.Total {
		next = max(*p.Total, p.Offset)
	}
	p.Offset = next
}
