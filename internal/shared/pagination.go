package shared

import "math"

const (
	// DefaultPage is used when the caller omits the page.
	DefaultPage = 1
	// DefaultLimit is used when the caller omits the limit.
	DefaultLimit = 20
	// MaxLimit caps page size.
	MaxLimit = 100
	// MaxPage keeps the row offset within int range at any limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

// PageRequest describes a requested page.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit into their valid ranges.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page PageRequest, total int) Pagination {
	page = page.Normalize()
	pages := int(math.Ceil(float64(total) / float64(page.Limit)))
	return Pagination{Page: page.Page, Limit: page.Limit, Total: total, Pages: pages}
}
