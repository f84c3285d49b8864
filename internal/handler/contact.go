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

// ContactHandler handles contact cards, contact-us messages and contact
// PINs.
type ContactHandler struct {
	contacts *service.ContactService
	pins     *service.PinService
	logger   *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(contacts *service.ContactService, pins *service.PinService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		pins:     pins,
		logger:   logger,
	}
}

// Create handles POST /api/v1/contacts.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.ContactInput{Phone: req.Phone, Address: req.Address, MapCoordinates: req.MapCoordinates}
	contact, err := h.contacts.CreateContact(r.Context(), auth.AccountFromContext(r.Context()), in)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("contact_created", "contact_id", contact.ID)
	writeJSON(w, http.StatusCreated, dto.ToContactResponse(contact))
}

// Get handles GET /api/v1/contacts/{id}.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	contact, err := h.contacts.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToContactResponse(contact))
}

// List handles GET /api/v1/contacts.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.contacts.ListContacts(r.Context(), listInput(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(page, dto.ToContactResponse))
}

// Update handles PATCH /api/v1/contacts/{id}.
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := service.ContactPatch{
		Phone:          lifecycle.FromPtr(req.Phone),
		Address:        lifecycle.FromPtr(req.Address),
		MapCoordinates: lifecycle.FromPtr(req.MapCoordinates),
	}
	contact, err := h.contacts.UpdateContact(r.Context(), auth.AccountFromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToContactResponse(contact))
}

// Delete handles DELETE /api/v1/contacts/{id}.
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.contacts.DeleteContact(r.Context(), auth.AccountFromContext(r.Context()), id); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("contact_deleted", "contact_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SubmitMessage handles POST /api/v1/contactus. Anonymous callers are
// welcome.
func (h *ContactHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactUsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.MessageInput{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message}
	msg, err := h.contacts.SubmitMessage(r.Context(), auth.AccountFromContext(r.Context()), in)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("contact_message_received", "message_id", msg.ID)
	writeJSON(w, http.StatusCreated, dto.ToContactMessageResponse(msg))
}

// GetMessage handles GET /api/v1/contactus/{id}.
func (h *ContactHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.contacts.GetMessage(r.Context(), auth.AccountFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToContactMessageResponse(msg))
}

// ListMessages handles GET /api/v1/contactus.
func (h *ContactHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	page, err := h.contacts.ListMessages(r.Context(), auth.AccountFromContext(r.Context()), listInput(r))
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(page, dto.ToContactMessageResponse))
}

// DeleteMessage handles DELETE /api/v1/contactus/{id}.
func (h *ContactHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.contacts.DeleteMessage(r.Context(), auth.AccountFromContext(r.Context()), id); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePin handles POST /api/v1/contact/secure.
func (h *ContactHandler) CreatePin(w http.ResponseWriter, r *http.Request) {
	var req dto.PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pin, err := h.pins.Create(r.Context(), req.Email, req.Pin)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PinResponse{ID: pin.ID, Email: pin.Email, CreatedAt: pin.CreatedAt})
}

// Login handles POST /api/v1/contact/secure/login.
func (h *ContactHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.pins.Login(r.Context(), req.Email, req.Pin); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Login successful"})
}

// ResetPin handles PUT /api/v1/contact/secure/{email}.
func (h *ContactHandler) ResetPin(w http.ResponseWriter, r *http.Request) {
	var req dto.PinResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.pins.Reset(r.Context(), chi.URLParam(r, "email"), req.Pin); err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Pin updated"})
}
