// Package query builds and executes live, re-executable record queries.
//
// A Query is an immutable value: every With* method returns a new Query and
// leaves the receiver untouched, so a base query can be paged, counted and
// re-filtered to an explicit ID set without side effects on other holders.
package query

import (
	"maps"
	"slices"
)

// DefaultDisplay is the display every view has.
const DefaultDisplay = "default"

// Spec is the serializable description of a query source.
type Spec struct {
	View         string            `json:"id"                      yaml:"id"`
	Display      string            `json:"display,omitempty"       yaml:"display,omitempty"`
	Arguments    []string          `json:"arguments,omitempty"     yaml:"arguments,omitempty"`
	ExposedInput map[string]string `json:"exposed_input,omitempty" yaml:"exposed_input,omitempty"`
}

// IsZero reports whether no view was specified.
func (s Spec) IsZero() bool {
	return s.View == ""
}

// Query is a view plus display, arguments, exposed input, paging and an
// optional primary-ID restriction.
type Query struct {
	spec     Spec
	limit    int
	offset   int
	ids      []string
	idFilter bool
}

// New creates a query from spec. Missing display means DefaultDisplay.
func New(spec Spec) Query {
	q := Query{spec: Spec{
		View:         spec.View,
		Display:      spec.Display,
		Arguments:    slices.Clone(spec.Arguments),
		ExposedInput: maps.Clone(spec.ExposedInput),
	}}
	if q.spec.Display == "" {
		q.spec.Display = DefaultDisplay
	}
	return q
}

// Spec returns a copy of the query source description.
func (q Query) Spec() Spec {
	return Spec{
		View:         q.spec.View,
		Display:      q.spec.Display,
		Arguments:    slices.Clone(q.spec.Arguments),
		ExposedInput: maps.Clone(q.spec.ExposedInput),
	}
}

// View returns the view identifier.
func (q Query) View() string { return q.spec.View }

// Display returns the display identifier.
func (q Query) Display() string { return q.spec.Display }

// Limit returns the maximum number of rows; zero means unlimited.
func (q Query) Limit() int { return q.limit }

// Offset returns the number of rows skipped.
func (q Query) Offset() int { return q.offset }

// IDs returns the primary-ID restriction and whether one is set.
func (q Query) IDs() ([]string, bool) {
	return slices.Clone(q.ids), q.idFilter
}

// WithDisplay returns a copy using another display.
func (q Query) WithDisplay(display string) Query {
	c := q.clone()
	if display == "" {
		display = DefaultDisplay
	}
	c.spec.Display = display
	return c
}

// WithArguments returns a copy with the given positional arguments.
func (q Query) WithArguments(args ...string) Query {
	c := q.clone()
	c.spec.Arguments = slices.Clone(args)
	return c
}

// WithExposedInput returns a copy with the given exposed filter input.
func (q Query) WithExposedInput(input map[string]string) Query {
	c := q.clone()
	c.spec.ExposedInput = maps.Clone(input)
	return c
}

// WithLimit returns a copy limited to n rows; n <= 0 removes the limit.
func (q Query) WithLimit(n int) Query {
	c := q.clone()
	c.limit = max(n, 0)
	return c
}

// WithOffset returns a copy skipping n rows.
func (q Query) WithOffset(n int) Query {
	c := q.clone()
	c.offset = max(n, 0)
	return c
}

// WithIDs returns a copy restricted to rows whose entity has one of ids.
// An empty ids slice matches nothing.
func (q Query) WithIDs(ids []string) Query {
	c := q.clone()
	c.ids = slices.Clone(ids)
	if c.ids == nil {
		c.ids = []string{}
	}
	c.idFilter = true
	return c
}

func (q Query) clone() Query {
	c := q
	c.spec = q.Spec()
	c.ids = slices.Clone(q.ids)
	return c
}
