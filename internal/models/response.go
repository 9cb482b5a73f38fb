package models

// helper to calculate pagination metadata
func CalculatePaginationMeta(page, limit, total int) (totalPages int, hasNext, hasPrev bool) {
	if limit <= 0 {
		limit = 1 // avoid division by zero
	}
	totalPages = pageCount(total, limit)
	hasNext = page < totalPages
	hasPrev = page > 1
	return
}

// Paginate returns the slice bounds for the given page. Pages past the end
// yield an empty range at total, however large page is.
func Paginate(page, limit, total int) (start, end int) {
	if limit <= 0 || total <= 0 {
		return 0, 0
	}
	if page < 1 {
		page = 1
	}
	// (page-1)*limit must not be computed when it could overflow
	if page-1 >= pageCount(total, limit) {
		return total, total
	}
	start = (page - 1) * limit
	end = total
	if limit < total-start {
		end = start + limit
	}
	return
}

func pageCount(total, limit int) int {
	n := total / limit
	if total%limit != 0 {
		n++
	}
	return n
}

// response body for GET /questions
type QuestionsResponse struct {
	Total      int        `json:"total"`
	Items      []Question `json:"items"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
	HasNext    bool       `json:"hasNext"`
	HasPrev    bool       `json:"hasPrev"`
}

type DiagnosticsResponse struct {
	Total int          `json:"total"`
	Items []Diagnostic `json:"items"`
}

// uniform error payload
type ErrorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []ValidationErrorDetail `json:"details,omitempty"`
}

// a single field error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}
