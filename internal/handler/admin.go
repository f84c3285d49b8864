package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/handler/dto"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/repository"
)

// AdminUserStore defines the user operations available to superusers.
type AdminUserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	SetSuperuser(ctx context.Context, id string, superuser bool) error
}

// AdminKeyLister defines the interface for listing API keys.
type AdminKeyLister interface {
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
}

// AuthInvalidator drops cached auth contexts of a user.
type AuthInvalidator interface {
	InvalidateUserAuthContexts(ctx context.Context, userID string) error
}

// AdminHandler provides superuser-only endpoints for user management.
type AdminHandler struct {
	users       AdminUserStore
	keys        AdminKeyLister
	invalidator AuthInvalidator
	logger      *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users AdminUserStore, keys AdminKeyLister, invalidator AuthInvalidator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:       users,
		keys:        keys,
		invalidator: invalidator,
		logger:      logger,
	}
}

// GetUser handles GET /api/v1/admin/users/{userID}.
// Returns the user together with their API keys (without secrets).
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := chi.URLParam(r, "userID")
	user, err := h.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	keys, err := h.keys.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	resp := dto.UserResponse{User: user, Keys: make([]model.APIKeyResponse, 0, len(keys))}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, k.ToResponse())
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetSuperuser handles PUT /api/v1/admin/users/{userID}/superuser.
// Cached auth contexts of the user are dropped so the change applies to
// their next request.
func (h *AdminHandler) SetSuperuser(w http.ResponseWriter, r *http.Request) {
	var req dto.SetSuperuserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == auth.UserIDFromContext(r.Context()) && !req.Superuser {
		writeError(w, http.StatusConflict, "SELF_DEMOTION", "Superusers cannot revoke their own privileges")
		return
	}

	err := h.users.SetSuperuser(r.Context(), userID, req.Superuser)
	if errors.Is(err, repository.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	if h.invalidator != nil {
		if err := h.invalidator.InvalidateUserAuthContexts(r.Context(), userID); err != nil {
			h.logger.Warn("auth cache invalidation failed", "user_id", userID, "error", err)
		}
	}

	h.logger.Info("superuser_changed",
		"user_id", userID,
		"superuser", req.Superuser,
		"by", auth.UserIDFromContext(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}
