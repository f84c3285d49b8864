package dto

import (
	"time"

	"github.com/quillbase/quillbase/internal/model"
)

// CreateBlogRequest represents the request body for creating a blog.
type CreateBlogRequest struct {
	Title string `json:"title"`
}

// UpdateBlogRequest represents the request body for updating a blog.
type UpdateBlogRequest struct {
	Title *string `json:"title,omitempty"`
}

// BlogResponse represents a blog in API responses.
type BlogResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	OwnerID   string     `json:"owner_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ToBlogResponse converts a Blog model to BlogResponse DTO.
func ToBlogResponse(b *model.Blog) BlogResponse {
	return BlogResponse{
		ID:        b.ID,
		Title:     b.Title,
		OwnerID:   b.OwnerID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		DeletedAt: b.DeletedAt,
	}
}

// CreatePostRequest represents the request body for creating a post.
type CreatePostRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// UpdatePostRequest represents the request body for updating a post.
// Omitted fields are left unchanged.
type UpdatePostRequest struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// PostResponse represents a blog post in API responses.
type PostResponse struct {
	ID        string    `json:"id"`
	BlogID    string    `json:"blog_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToPostResponse converts a BlogPost model to PostResponse DTO.
func ToPostResponse(p *model.BlogPost) PostResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostResponse{
		ID:        p.ID,
		BlogID:    p.BlogID(),
		AuthorID:  p.OwnerID,
		Title:     p.Title,
		Content:   p.Content,
		Tags:      tags,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
