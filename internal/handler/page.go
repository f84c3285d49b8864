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

// PageHandler handles HTTP requests for static pages.
type PageHandler struct {
	svc    *service.PageService
	logger *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(svc *service.PageService, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/pages.
func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	page, err := h.svc.Create(r.Context(), auth.AccountFromContext(r.Context()), service.PageInput{Title: req.Title, Content: req.Content})
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("page_created", "page_id", page.ID)
	writeJSON(w, http.StatusCreated, dto.ToPageResponse(page))
}

// Get handles GET /api/v1/pages/{id}.
func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPageResponse(page))
}

// Find handles GET /api/v1/pages/by/{field}/{value}.
func (h *PageHandler) Find(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Find(r.Context(), chi.URLParam(r, "field"), chi.URLParam(r, "value"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPageResponse(page))
}

// List handles GET /api/v1/pages.
func (h *PageHandler) List(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.List(r.Context(), r.URL.Query().Get("owner"), listInput(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(pages, dto.ToPageResponse))
}

// Update handles PATCH /api/v1/pages/{id}.
func (h *PageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.PagePatch{
		Title:   lifecycle.FromPtr(req.Title),
		Content: lifecycle.FromPtr(req.Content),
	}
	page, err := h.svc.Update(r.Context(), auth.AccountFromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPageResponse(page))
}

// Delete handles DELETE /api/v1/pages/{id}.
func (h *PageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), auth.AccountFromContext(r.Context()), id); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("page_deleted", "page_id", id)
	w.WriteHeader(http.StatusNoContent)
}
