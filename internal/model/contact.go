package model

import (
	"time"

	"github.com/quillbase/quillbase/internal/lifecycle"
)

// Contact is an address card managed by superusers.
type Contact struct {
	lifecycle.Meta
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	MapCoordinates string `json:"map_coordinates"`
}

// CloneContact returns a copy of c.
func CloneContact(c *Contact) *Contact {
	cp := *c
	cp.Meta = c.Meta.Clone()
	return &cp
}

// Contact fields.
var (
	ContactPhone          = lifecycle.Field[*Contact, string]{Name: "phone", Set: func(c *Contact, v string) { c.Phone = v }}
	ContactAddress        = lifecycle.Field[*Contact, string]{Name: "address", Set: func(c *Contact, v string) { c.Address = v }}
	ContactMapCoordinates = lifecycle.Field[*Contact, string]{Name: "map_coordinates", Set: func(c *Contact, v string) { c.MapCoordinates = v }}
)

// ContactMessage is a contact-us submission. Anonymous visitors may create
// one; only superusers read or delete them.
type ContactMessage struct {
	lifecycle.Meta
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// CloneContactMessage returns a copy of m.
func CloneContactMessage(m *ContactMessage) *ContactMessage {
	cp := *m
	cp.Meta = m.Meta.Clone()
	return &cp
}

// ContactMessage fields.
var (
	MessageSubject = lifecycle.Field[*ContactMessage, string]{Name: "subject", Set: func(m *ContactMessage, v string) { m.Subject = v }}
	MessageBody    = lifecycle.Field[*ContactMessage, string]{Name: "message", Set: func(m *ContactMessage, v string) { m.Message = v }}
)

// ContactPin guards contact access behind a per-email PIN.
type ContactPin struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CodeHash  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
