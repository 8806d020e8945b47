package pagination

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkops/internal/query"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{name: "defaults", params: Params{Limit: DefaultLimit}},
		{name: "no limit", params: Params{}},
		{name: "offset mode", params: Params{Limit: 10, Offset: 20}},
		{name: "page mode", params: Params{Page: 2, PageSize: 25}},
		{name: "negative limit", params: Params{Limit: -1}, wantErr: ErrInvalidLimit},
		{name: "limit too large", params: Params{Limit: MaxLimit + 1}, wantErr: ErrInvalidLimit},
		{name: "negative offset", params: Params{Offset: -5}, wantErr: ErrInvalidOffset},
		{name: "negative page", params: Params{Page: -1}, wantErr: ErrInvalidPage},
		{name: "mixed modes", params: Params{Page: 1, PageSize: 10, Offset: 5}, wantErr: ErrMixedPaginationModes},
		{name: "page size alone", params: Params{PageSize: 10}, wantErr: ErrPageSizeWithoutPage},
		{name: "page without size", params: Params{Page: 1}, wantErr: ErrInvalidPageSize},
		{name: "page size too large", params: Params{Page: 1, PageSize: MaxPageSize + 1}, wantErr: ErrInvalidPageSize},
		{name: "bad sort", params: Params{Sort: "label:sideways"}, wantErr: ErrInvalidSortOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		expr      string
		wantField string
		wantOrder string
		wantErr   error
	}{
		{expr: "", wantField: "", wantOrder: SortOrderAsc},
		{expr: "label", wantField: "label", wantOrder: SortOrderAsc},
		{expr: "label:DESC", wantField: "label", wantOrder: SortOrderDesc},
		{expr: " id : asc ", wantField: "id", wantOrder: SortOrderAsc},
		{expr: "a:b:c", wantErr: ErrInvalidSortFormat},
		{expr: ":desc", wantErr: ErrEmptySortField},
		{expr: "id:up", wantErr: ErrInvalidSortOrder},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			field, order, err := ParseSort(tt.expr)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}

func TestParams_OffsetLimitAndApply(t *testing.T) {
	tests := []struct {
		name       string
		params     Params
		wantOffset int
		wantLimit  int
	}{
		{name: "offset mode", params: Params{Limit: 10, Offset: 30}, wantOffset: 30, wantLimit: 10},
		{name: "first page", params: Params{Page: 1, PageSize: 20}, wantOffset: 0, wantLimit: 20},
		{name: "third page", params: Params{Page: 3, PageSize: 20}, wantOffset: 40, wantLimit: 20},
		{name: "unbounded", params: Params{}, wantOffset: 0, wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := tt.params.OffsetLimit()
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)

			base := query.New(query.Spec{View: "node"})
			paged := tt.params.Apply(base)
			assert.Equal(t, tt.wantOffset, paged.Offset())
			assert.Equal(t, tt.wantLimit, paged.Limit())
			assert.Zero(t, base.Offset(), "base query is not modified")
		})
	}
}

func TestNewMeta(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   Meta
	}{
		{
			name:   "page mode middle",
			params: Params{Page: 2, PageSize: 10},
			total:  35,
			want:   Meta{CurrentPage: 2, PageSize: 10, TotalPages: 4, TotalItems: 35, HasPrevious: true, HasNext: true},
		},
		{
			name:   "offset mode last page",
			params: Params{Limit: 10, Offset: 30},
			total:  35,
			want:   Meta{CurrentPage: 4, PageSize: 10, TotalPages: 4, TotalItems: 35, HasPrevious: true},
		},
		{
			name:   "no limit single page",
			params: Params{},
			total:  7,
			want:   Meta{CurrentPage: 1, PageSize: 7, TotalPages: 1, TotalItems: 7},
		},
		{
			name:   "empty result",
			params: Params{Limit: 10},
			total:  0,
			want:   Meta{CurrentPage: 1, PageSize: 10, TotalPages: 0, TotalItems: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMeta(tt.params, tt.total))
		})
	}
}

func TestRowSorter(t *testing.T) {
	rows := []query.Row{
		{Values: map[string]string{"id": "2", "label": "beta", "node_langcode": "en"}},
		{Values: map[string]string{"id": "1", "label": "alpha", "node_langcode": "fr"}},
		{Values: map[string]string{"id": "3", "label": "alpha", "node_langcode": "de"}},
	}
	ids := func(rs []query.Row) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.Values["id"])
		}
		return out
	}
	sorter := NewRowSorter("node")

	t.Run("ascending is stable", func(t *testing.T) {
		sorted, err := sorter.Sort(rows, "label")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "3", "2"}, ids(sorted))
		assert.Equal(t, []string{"2", "1", "3"}, ids(rows), "input is not modified")
	})

	t.Run("descending", func(t *testing.T) {
		sorted, err := sorter.Sort(rows, "node_langcode:desc")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3"}, ids(sorted))
	})

	t.Run("empty expression", func(t *testing.T) {
		sorted, err := sorter.Sort(rows, "")
		require.NoError(t, err)
		assert.Equal(t, ids(rows), ids(sorted))
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := sorter.Sort(rows, "color")
		assert.Error(t, err)
		assert.False(t, sorter.IsValidField("color"))
		assert.Contains(t, sorter.ValidFields(), "node_langcode")
	})
}
