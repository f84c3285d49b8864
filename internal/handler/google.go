package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quillbase/quillbase/internal/handler/dto"
	"github.com/quillbase/quillbase/internal/service"
)

// GoogleHandler runs the Google sign-in flow.
type GoogleHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewGoogleHandler creates a new GoogleHandler.
func NewGoogleHandler(svc *service.AccountService, logger *slog.Logger) *GoogleHandler {
	return &GoogleHandler{
		svc:    svc,
		logger: logger,
	}
}

// GenerateURL handles GET /google/generate_url by redirecting to the
// Google consent screen.
func (h *GoogleHandler) GenerateURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.LoginURL(r.Context())
	if err != nil {
		h.handleLoginError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Token handles GET /google/token, the OAuth callback. It answers with the
// user and a freshly issued API key.
func (h *GoogleHandler) Token(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if e := query.Get("error"); e != "" {
		h.logger.Warn("google login denied", "error", e)
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Could not validate credentials")
		return
	}

	user, key, err := h.svc.CompleteLogin(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		h.handleLoginError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Data:        user,
		AccessToken: key.Key,
		TokenType:   "bearer",
		KeyID:       key.ID,
	})
}

func (h *GoogleHandler) handleLoginError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrLoginDisabled):
		writeError(w, http.StatusServiceUnavailable, "LOGIN_DISABLED", "Google login is not configured")
	case errors.Is(err, service.ErrLoginFailed):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Could not validate credentials")
	default:
		handleServiceError(h.logger, w, r, err)
	}
}
