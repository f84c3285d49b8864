// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/quillbase/quillbase/internal/lifecycle"

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ListResponse is a paginated list of resources.
type ListResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

// ToListResponse converts one lifecycle page with convert.
func ToListResponse[R lifecycle.Record, T any](page lifecycle.Page[R], convert func(R) T) *ListResponse[T] {
	data := make([]T, len(page.Items))
	for i, item := range page.Items {
		data[i] = convert(item)
	}
	return &ListResponse[T]{
		Data: data,
		Pagination: &Pagination{
			NextCursor: page.NextCursor,
			HasMore:    page.HasMore(),
		},
	}
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
