package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Filterable record fields.
const (
	FieldBundle   = "bundle"
	FieldStatus   = "status"
	FieldLangcode = "langcode"
	FieldLabel    = "label"
)

// argumentWildcard skips a positional argument.
const argumentWildcard = "all"

// Common query errors.
var (
	ErrUnknownView      = errors.New("unknown view")
	ErrUnknownDisplay   = errors.New("unknown display")
	ErrUnknownField     = errors.New("unknown filter field")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrInvalidView      = errors.New("invalid view")
)

//nolint:gochecknoglobals // Immutable lookup table.
var filterableFields = map[string]bool{
	FieldBundle:   true,
	FieldStatus:   true,
	FieldLangcode: true,
	FieldLabel:    true,
}

// ValidFields returns the filterable field names in stable order.
func ValidFields() []string {
	names := make([]string, 0, len(filterableFields))
	for f := range filterableFields {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// View declares how queries over one record type are filtered.
// Rows are produced per record translation.
type View struct {
	ID         string `json:"id"          yaml:"id"`
	RecordType string `json:"record_type" yaml:"record_type"`

	// ArgumentFields maps positional arguments to fields; "all" skips one.
	ArgumentFields []string `json:"argument_fields,omitempty" yaml:"argument_fields,omitempty"`

	// ExposedFilters lists the fields users may filter on; other input is ignored.
	ExposedFilters []string `json:"exposed_filters,omitempty" yaml:"exposed_filters,omitempty"`

	// Displays maps display IDs to fixed filters. DefaultDisplay always exists.
	Displays map[string]map[string]string `json:"displays,omitempty" yaml:"displays,omitempty"`
}

// DefaultView returns a view over every record of recordType with all fields exposed.
func DefaultView(recordType string) View {
	return View{
		ID:             recordType,
		RecordType:     recordType,
		ExposedFilters: ValidFields(),
	}
}

// Validate checks the view refers only to filterable fields.
func (v View) Validate() error {
	if v.ID == "" || v.RecordType == "" {
		return fmt.Errorf("%w: id and record_type are required", ErrInvalidView)
	}
	check := func(field string) error {
		if !filterableFields[field] {
			return fmt.Errorf("%w: view %s uses %q (valid: %s)",
				ErrUnknownField, v.ID, field, strings.Join(ValidFields(), ", "))
		}
		return nil
	}
	for _, f := range v.ArgumentFields {
		if err := check(f); err != nil {
			return err
		}
	}
	for _, f := range v.ExposedFilters {
		if err := check(f); err != nil {
			return err
		}
	}
	for _, filters := range v.Displays {
		for f := range filters {
			if err := check(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Condition is a single field equality filter.
type Condition struct {
	Field string
	Value string
}

// Conditions resolves the display, arguments and exposed input of q into
// equality conditions, sorted by field for deterministic SQL.
func (v View) Conditions(q Query) ([]Condition, error) {
	var conds []Condition

	display := q.Display()
	if display != DefaultDisplay {
		filters, ok := v.Displays[display]
		if !ok {
			return nil, fmt.Errorf("%w: %s on view %s", ErrUnknownDisplay, display, v.ID)
		}
		for f, val := range filters {
			conds = append(conds, Condition{Field: f, Value: val})
		}
	} else if filters, ok := v.Displays[DefaultDisplay]; ok {
		for f, val := range filters {
			conds = append(conds, Condition{Field: f, Value: val})
		}
	}

	spec := q.Spec()
	if len(spec.Arguments) > len(v.ArgumentFields) {
		return nil, fmt.Errorf("%w: view %s takes %d, got %d",
			ErrTooManyArguments, v.ID, len(v.ArgumentFields), len(spec.Arguments))
	}
	for i, arg := range spec.Arguments {
		if arg == "" || arg == argumentWildcard {
			continue
		}
		conds = append(conds, Condition{Field: v.ArgumentFields[i], Value: arg})
	}

	exposed := make(map[string]bool, len(v.ExposedFilters))
	for _, f := range v.ExposedFilters {
		exposed[f] = true
	}
	for f, val := range spec.ExposedInput {
		if !exposed[f] || val == "" {
			continue
		}
		conds = append(conds, Condition{Field: f, Value: val})
	}

	sort.SliceStable(conds, func(i, j int) bool {
		if conds[i].Field != conds[j].Field {
			return conds[i].Field < conds[j].Field
		}
		return conds[i].Value < conds[j].Value
	})
	return conds, nil
}

// Views is a thread-safe registry of view definitions.
type Views struct {
	mu    sync.RWMutex
	views map[string]View
}

// NewViews creates a registry holding the given views.
func NewViews(views ...View) (*Views, error) {
	reg := &Views{views: make(map[string]View)}
	for _, v := range views {
		if err := reg.Register(v); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds or replaces a view after validating it.
func (r *Views) Register(v View) error {
	if err := v.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.ID] = v
	return nil
}

// Lookup returns the view with the given ID.
func (r *Views) Lookup(id string) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrUnknownView, id)
	}
	return v, nil
}

// List returns all views sorted by ID.
func (r *Views) List() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
