package shared

// Pagination is embedded by typed filters
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPageSize is used when a filter does not set a page size
const DefaultPageSize = 20

// MaxPageSize caps page sizes requested by callers
const MaxPageSize = 100

// Normalize clamps the pagination values to sane bounds
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// SortDirection is the direction of an ORDER BY clause
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// IsValid reports whether the direction is recognised
func (d SortDirection) IsValid() bool {
	return d == SortAsc || d == SortDesc
}
