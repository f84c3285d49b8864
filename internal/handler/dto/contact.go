package dto

import (
	"time"

	"github.com/quillbase/quillbase/internal/model"
)

// ContactRequest represents the request body for creating a contact card.
type ContactRequest struct {
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	MapCoordinates string `json:"map_coordinates,omitempty"`
}

// UpdateContactRequest represents the request body for updating a contact card.
type UpdateContactRequest struct {
	Phone          *string `json:"phone,omitempty"`
	Address        *string `json:"address,omitempty"`
	MapCoordinates *string `json:"map_coordinates,omitempty"`
}

// ContactResponse represents a contact card in API responses.
type ContactResponse struct {
	ID             string    `json:"id"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	MapCoordinates string    `json:"map_coordinates,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToContactResponse converts a Contact model to ContactResponse DTO.
func ToContactResponse(c *model.Contact) ContactResponse {
	return ContactResponse{
		ID:             c.ID,
		Phone:          c.Phone,
		Address:        c.Address,
		MapCoordinates: c.MapCoordinates,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// ContactUsRequest represents a contact-us form submission.
type ContactUsRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// ContactMessageResponse represents a contact-us message in API responses.
type ContactMessageResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ToContactMessageResponse converts a ContactMessage model to its DTO.
func ToContactMessageResponse(m *model.ContactMessage) ContactMessageResponse {
	return ContactMessageResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

// PinRequest carries an e-mail and its PIN.
type PinRequest struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}

// PinResetRequest carries the replacement PIN.
type PinResetRequest struct {
	Pin string `json:"pin"`
}

// PinResponse represents a registered PIN. The PIN itself is never returned.
type PinResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
