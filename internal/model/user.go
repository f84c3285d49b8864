// Package model defines domain entities for the application.
package model

import (
	"time"

	"github.com/quillbase/quillbase/internal/lifecycle"
)

// User is an account holder. Users are created by Google login or by the
// bootstrap script; IsSuperuser grants elevated privileges on every
// resource policy.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Picture     string    `json:"picture,omitempty"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

// Account returns the lifecycle account for u.
func (u *User) Account() lifecycle.Account {
	return lifecycle.Account{ID: u.ID, Elevated: u.IsSuperuser}
}
