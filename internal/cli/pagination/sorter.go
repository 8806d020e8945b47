package pagination

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rshade/bulkops/internal/query"
)

// RowSorter sorts query rows by one of their values.
type RowSorter struct {
	validFields map[string]bool
}

// NewRowSorter creates a sorter for rows of recordType. Besides the common
// row values, rows can be sorted by their language columns.
func NewRowSorter(recordType string) *RowSorter {
	fields := map[string]bool{
		"id":     true,
		"uuid":   true,
		"bundle": true,
		"label":  true,
		"status": true,
	}
	fields[query.LanguageField(recordType)] = true
	return &RowSorter{validFields: fields}
}

// IsValidField reports whether rows can be sorted by field.
func (s *RowSorter) IsValidField(field string) bool {
	return s.validFields[field]
}

// ValidFields returns the sortable fields in stable order.
func (s *RowSorter) ValidFields() []string {
	fields := make([]string, 0, len(s.validFields))
	for f := range s.validFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Sort returns a sorted copy of rows. An empty field returns rows unchanged.
// Equal values keep their query order.
func (s *RowSorter) Sort(rows []query.Row, expr string) ([]query.Row, error) {
	field, order, err := ParseSort(expr)
	if err != nil {
		return nil, err
	}
	if field == "" {
		return rows, nil
	}
	if !s.IsValidField(field) {
		return nil, fmt.Errorf("invalid sort field %q (valid: %s)", field, strings.Join(s.ValidFields(), ", "))
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b query.Row) int {
		c := strings.Compare(a.Values[field], b.Values[field])
		if order == SortOrderDesc {
			return -c
		}
		return c
	})
	return sorted, nil
}
