package pagination

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps the page size a caller may request.
const MaxPerPage = 100

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: 20,
		Offset:  0,
	}
}

// FromRequest extracts pagination parameters from an HTTP request.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()

	if page := r.URL.Query().Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	if perPage := r.URL.Query().Get("per_page"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= MaxPerPage {
			p.PerPage = v
		}
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// ProbeLimit is the limit to request from a backend that reports no total
// count: one row past the page reveals whether a next page exists.
func (p Params) ProbeLimit() int {
	return p.PerPage + 1
}

// Result wraps a paginated response. Backends without a total count give
// HasNext from a probe row instead of TotalPages.
type Result[T any] struct {
	Data    []T  `json:"data"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewProbedResult builds a Result from rows fetched with ProbeLimit,
// trimming the probe row if present.
func NewProbedResult[T any](rows []T, params Params) Result[T] {
	hasNext := len(rows) > params.PerPage
	if hasNext {
		rows = rows[:params.PerPage]
	}
	if rows == nil {
		rows = []T{}
	}

	return Result[T]{
		Data:    rows,
		Page:    params.Page,
		PerPage: params.PerPage,
		HasNext: hasNext,
		HasPrev: params.Page > 1,
	}
}
