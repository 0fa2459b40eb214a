package pagination

const (
	// DefaultPageSize is the standard page size when one is not provided.
	DefaultPageSize = 10
	// MaxPageSize caps how many rows any page may request.
	MaxPageSize = 100
)

// Params holds 1-based page inputs from controllers or services.
type Params struct {
	Page     int
	PageSize int
}

// Normalize enforces page >= 1 and the default and maximum page sizes.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), PageSize: NormalizePageSize(p.PageSize)}
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Limit returns the normalized page size.
func (p Params) Limit() int {
	return NormalizePageSize(p.PageSize)
}

// NormalizePage clamps page numbers below one to the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizePageSize enforces the configured default and maximum page sizes.
func NormalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
