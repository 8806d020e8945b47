package pagination

// Meta describes where a page sits in the full result.
type Meta struct {
	CurrentPage int  `json:"current_page" yaml:"current_page"`
	PageSize    int  `json:"page_size"    yaml:"page_size"`
	TotalPages  int  `json:"total_pages"  yaml:"total_pages"`
	TotalItems  int  `json:"total_items"  yaml:"total_items"`
	HasPrevious bool `json:"has_previous" yaml:"has_previous"`
	HasNext     bool `json:"has_next"     yaml:"has_next"`
}

// NewMeta computes paging metadata for totalCount rows.
func NewMeta(p Params, totalCount int) Meta {
	offset, pageSize := p.OffsetLimit()
	if pageSize == 0 {
		pageSize = totalCount
	}

	currentPage := 1
	if p.IsPageBased() {
		currentPage = p.Page
	} else if pageSize > 0 {
		currentPage = offset/pageSize + 1
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}

	return Meta{
		CurrentPage: currentPage,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalItems:  totalCount,
		HasPrevious: currentPage > 1,
		HasNext:     currentPage < totalPages,
	}
}
