package pagination

// Params identifies one page of a list.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the index of the first item on the page.
func (p Params) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// End returns the exclusive index of the last item on the page.
func (p Params) End() int {
	return p.Offset() + max(p.Limit, 0)
}

// Info mirrors the pagination block of the product API.
type Info struct {
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	ItemsPerPage    int  `json:"itemsPerPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewInfo computes pagination info for totalItems split into pages of limit.
func NewInfo(totalItems int, p Params) Info {
	totalPages := TotalPages(totalItems, p.Limit)
	return Info{
		CurrentPage:     p.Page,
		TotalPages:      totalPages,
		TotalItems:      totalItems,
		ItemsPerPage:    p.Limit,
		HasNextPage:     p.Page < totalPages,
		HasPreviousPage: p.Page > 1,
	}
}

// TotalPages returns ceil(totalItems/limit), never less than 1.
func TotalPages(totalItems, limit int) int {
	if limit < 1 || totalItems < 1 {
		return 1
	}
	pages := totalItems / limit
	if totalItems%limit > 0 {
		pages++
	}
	return pages
}

// Slice returns the items that fall on page p. Pages past the end are empty,
// never nil.
func Slice[T any](items []T, p Params) []T {
	start := min(p.Offset(), len(items))
	end := min(p.End(), len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
