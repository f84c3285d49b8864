package dto

import (
	"time"

	"github.com/quillbase/quillbase/internal/model"
)

// PageRequest represents the request body for creating a page.
type PageRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdatePageRequest represents the request body for updating a page.
type UpdatePageRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// PageResponse represents a page in API responses.
type PageResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToPageResponse converts a Page model to PageResponse DTO.
func ToPageResponse(p *model.Page) PageResponse {
	return PageResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
