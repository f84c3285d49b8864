package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/handler/dto"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/service"
)

// VideoHandler handles HTTP requests for video bookmarks.
type VideoHandler struct {
	svc    *service.VideoService
	logger *slog.Logger
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(svc *service.VideoService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		svc:    svc,
		logger: logger,
	}
}

// Bookmark handles POST /api/v1/videos.
func (h *VideoHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	var req dto.BookmarkVideoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	video, err := h.svc.Bookmark(r.Context(), auth.AccountFromContext(r.Context()), req.URL)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("video_bookmarked", "video_id", video.ID, "owner_id", video.OwnerID)
	writeJSON(w, http.StatusCreated, dto.ToVideoResponse(video))
}

// ListMine handles GET /api/v1/videos.
func (h *VideoHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.ListMine(r.Context(), auth.AccountFromContext(r.Context()))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	resp := dto.VideoListResponse{Data: make([]dto.VideoResponse, len(videos))}
	for i, v := range videos {
		resp.Data[i] = dto.ToVideoResponse(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/videos/{id}.
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	video, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToVideoResponse(video))
}

// Update handles PATCH /api/v1/videos/{id}.
func (h *VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateVideoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	video, err := h.svc.Rename(r.Context(), auth.AccountFromContext(r.Context()), chi.URLParam(r, "id"), lifecycle.FromPtr(req.Title))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToVideoResponse(video))
}

// React handles POST /api/v1/videos/{id}/{action}, where action is like or
// unlike.
func (h *VideoHandler) React(w http.ResponseWriter, r *http.Request) {
	video, err := h.svc.React(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "action"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToVideoResponse(video))
}

// Delete handles DELETE /api/v1/videos/{id}.
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), auth.AccountFromContext(r.Context()), id); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("video_deleted", "video_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Download handles POST /api/v1/videos/{id}/download.
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID, err := h.svc.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.JobResponse{JobID: jobID, Message: "Download will run in the background"})
}
