package response

import "github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"

// Page wraps one page of a list endpoint.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	HasMore  bool `json:"has_more"`
}

// NewPage builds a Page from normalized list params. Items is never null.
func NewPage[T any](items []T, p request.ListParams, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
		HasMore:  p.Page*p.PageSize < total,
	}
}
