package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillbase/quillbase/internal/handler/dto"
	"github.com/quillbase/quillbase/internal/mail"
	"github.com/quillbase/quillbase/internal/service"
)

// EmailHandler queues templated e-mail.
type EmailHandler struct {
	svc    *service.MailService
	logger *slog.Logger
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(svc *service.MailService, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		svc:    svc,
		logger: logger,
	}
}

// Send handles POST /api/v1/email/send and POST /api/v1/email/send/{kind}.
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var msg mail.Message
	if !decodeJSON(w, r, &msg) {
		return
	}

	ack, err := h.svc.Send(r.Context(), chi.URLParam(r, "kind"), &msg)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("email_queued", "kind", string(msg.Kind), "recipients", len(msg.Recipients))
	writeJSON(w, http.StatusAccepted, dto.MessageResponse{Message: ack})
}
