package dto

import (
	"time"

	"github.com/quillbase/quillbase/internal/model"
)

// BookmarkVideoRequest names the page of the video to bookmark.
type BookmarkVideoRequest struct {
	URL string `json:"url"`
}

// UpdateVideoRequest represents the request body for renaming a video.
type UpdateVideoRequest struct {
	Title *string `json:"title,omitempty"`
}

// VideoResponse represents a video bookmark in API responses.
type VideoResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Likes     int       `json:"likes"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToVideoResponse converts a Video model to VideoResponse DTO.
func ToVideoResponse(v *model.Video) VideoResponse {
	return VideoResponse{
		ID:        v.ID,
		Title:     v.Title,
		URL:       v.URL,
		Thumbnail: v.Thumbnail,
		Duration:  v.Duration,
		Likes:     v.Likes,
		OwnerID:   v.OwnerID,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

// VideoListResponse lists the caller's videos.
type VideoListResponse struct {
	Data []VideoResponse `json:"data"`
}

// JobResponse acknowledges a queued background job.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}
