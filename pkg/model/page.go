package model

// PageRequest selects a bounded window of a result set. Page numbering
// starts at 1.
type PageRequest struct {
	Page  int `json:"page" schema:"page"`
	Limit int `json:"limit" schema:"limit"`
}

// Validate rejects out-of-range paging input before any query executes.
func (p PageRequest) Validate(maxLimit int) error {
	if p.Page < 1 {
		return Validationf("page must be >= 1, got %d", p.Page)
	}
	if p.Limit < 1 {
		return Validationf("limit must be >= 1, got %d", p.Limit)
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		return Validationf("limit must be <= %d, got %d", maxLimit, p.Limit)
	}
	return nil
}

// Offset returns the zero-based row offset for the request.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageResult is the paginated response envelope. TotalDegraded marks
// results whose count query failed: Total and the navigation flags are
// then not trustworthy and Data alone reflects what was fetched.
type PageResult[T any] struct {
	Data          []T   `json:"data"`
	Total         int64 `json:"total"`
	Page          int   `json:"page"`
	Limit         int   `json:"limit"`
	TotalPages    int   `json:"total_pages"`
	HasNext       bool  `json:"has_next"`
	HasPrev       bool  `json:"has_prev"`
	TotalDegraded bool  `json:"total_degraded,omitempty"`
}

// NewPageResult assembles a result from a fetched window and a fresh row
// count. Pure arithmetic, no I/O.
func NewPageResult[T any](data []T, total int64, page, limit int) PageResult[T] {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// DegradedPageResult assembles a result for the count-query-failed path:
// the fetched rows are still returned, with Total zeroed and the result
// flagged so staleness is diagnosable by the caller.
func DegradedPageResult[T any](data []T, page, limit int) PageResult[T] {
	r := NewPageResult(data, 0, page, limit)
	r.TotalDegraded = true
	return r
}
