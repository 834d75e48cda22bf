package tasklist

// DefaultPageSize matches the original list page.
const DefaultPageSize = 10

// Pagination is the page window over the cached task collection.
// CurrentPage is always within [1, TotalPages] and TotalPages is never below 1.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages"`
}

// NewPagination returns the state for an empty collection.
func NewPagination(pageSize int) Pagination {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return Pagination{CurrentPage: 1, PageSize: pageSize, TotalPages: 1}
}

// TotalPages returns max(1, ceil(count/pageSize)).
func TotalPages(count, pageSize int) int {
	if pageSize < 1 || count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// Resize recomputes TotalPages for count items and clamps CurrentPage into range.
func (p Pagination) Resize(count int) Pagination {
	p.TotalPages = TotalPages(count, p.PageSize)
	p.CurrentPage = clamp(p.CurrentPage, 1, p.TotalPages)
	return p
}

// Contains reports whether page is a valid page number.
func (p Pagination) Contains(page int) bool {
	return page >= 1 && page <= p.TotalPages
}

// Bounds returns the half-open index range [start, end) of the current page
// within a collection of count items.
func (p Pagination) Bounds(count int) (start, end int) {
	start = (p.CurrentPage - 1) * p.PageSize
	end = start + p.PageSize
	start = clamp(start, 0, count)
	end = clamp(end, 0, count)
	return start, end
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool { return p.CurrentPage < p.TotalPages }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
