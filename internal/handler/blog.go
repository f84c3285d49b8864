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

// BlogHandler handles HTTP requests for blogs and their posts.
type BlogHandler struct {
	svc    *service.BlogService
	logger *slog.Logger
}

// NewBlogHandler creates a new BlogHandler.
func NewBlogHandler(svc *service.BlogService, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/blogs.
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBlogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	blog, err := h.svc.CreateBlog(r.Context(), auth.AccountFromContext(r.Context()), req.Title)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("blog_created", "blog_id", blog.ID, "owner_id", blog.OwnerID)
	writeJSON(w, http.StatusCreated, dto.ToBlogResponse(blog))
}

// Get handles GET /api/v1/blogs/{blogID}. Superusers may pass
// include_deleted=true to see soft-deleted blogs.
func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	acct := auth.AccountFromContext(r.Context())
	blog, err := h.svc.GetBlog(r.Context(), acct, chi.URLParam(r, "blogID"), includeDeleted(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToBlogResponse(blog))
}

// List handles GET /api/v1/blogs. The owner query parameter narrows the
// listing to one user.
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	acct := auth.AccountFromContext(r.Context())
	page, err := h.svc.ListBlogs(r.Context(), acct, r.URL.Query().Get("owner"), includeDeleted(r), listInput(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(page, dto.ToBlogResponse))
}

// Update handles PATCH /api/v1/blogs/{blogID}.
func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateBlogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct := auth.AccountFromContext(r.Context())
	blog, err := h.svc.UpdateBlog(r.Context(), acct, chi.URLParam(r, "blogID"), lifecycle.FromPtr(req.Title))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("blog_updated", "blog_id", blog.ID)
	writeJSON(w, http.StatusOK, dto.ToBlogResponse(blog))
}

// Delete handles DELETE /api/v1/blogs/{blogID}.
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "blogID")
	if err := h.svc.DeleteBlog(r.Context(), auth.AccountFromContext(r.Context()), id); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("blog_deleted", "blog_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// CreatePost handles POST /api/v1/blogs/{blogID}/posts.
func (h *BlogHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.PostInput{Title: req.Title, Content: req.Content, Tags: req.Tags}
	post, err := h.svc.CreatePost(r.Context(), auth.AccountFromContext(r.Context()), chi.URLParam(r, "blogID"), in)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("post_created", "post_id", post.ID, "blog_id", post.BlogID())
	writeJSON(w, http.StatusCreated, dto.ToPostResponse(post))
}

// GetPost handles GET /api/v1/blogs/{blogID}/posts/{postID}.
func (h *BlogHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.GetPost(r.Context(), chi.URLParam(r, "blogID"), chi.URLParam(r, "postID"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPostResponse(post))
}

// ListPosts handles GET /api/v1/blogs/{blogID}/posts.
func (h *BlogHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListPosts(r.Context(), chi.URLParam(r, "blogID"), listInput(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(page, dto.ToPostResponse))
}

// ListUserPosts handles GET /api/v1/users/{userID}/posts.
func (h *BlogHandler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListPostsByAuthor(r.Context(), chi.URLParam(r, "userID"), listInput(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(page, dto.ToPostResponse))
}

// UpdatePost handles PATCH /api/v1/blogs/{blogID}/posts/{postID}.
func (h *BlogHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.PostPatch{
		Title:   lifecycle.FromPtr(req.Title),
		Content: lifecycle.FromPtr(req.Content),
		Tags:    lifecycle.FromPtr(req.Tags),
	}
	acct := auth.AccountFromContext(r.Context())
	post, err := h.svc.UpdatePost(r.Context(), acct, chi.URLParam(r, "blogID"), chi.URLParam(r, "postID"), patch)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("post_updated", "post_id", post.ID)
	writeJSON(w, http.StatusOK, dto.ToPostResponse(post))
}

// DeletePost handles DELETE /api/v1/blogs/{blogID}/posts/{postID}.
func (h *BlogHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	acct := auth.AccountFromContext(r.Context())
	if err := h.svc.DeletePost(r.Context(), acct, chi.URLParam(r, "blogID"), postID); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("post_deleted", "post_id", postID)
	w.WriteHeader(http.StatusNoContent)
}

func includeDeleted(r *http.Request) bool {
	return r.URL.Query().Get("include_deleted") == "true"
}
