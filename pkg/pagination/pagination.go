// Package pagination provides pagination utilities.
package pagination

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// New creates a new Pagination with defaults applied.
func New(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the row limit for the current page.
func (p Pagination) Limit() int {
	return p.PerPage
}

// TotalPages returns the number of pages for the given total row count.
func (p Pagination) TotalPages(total int64) int {
	if total <= 0 || p.PerPage <= 0 {
		return 0
	}
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		pages++
	}
	return pages
}
