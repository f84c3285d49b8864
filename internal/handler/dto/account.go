package dto

import "github.com/quillbase/quillbase/internal/model"

// LoginResponse is returned by a completed Google login. AccessToken is an
// API key shown only once.
type LoginResponse struct {
	Data        *model.User `json:"data"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	KeyID       string      `json:"key_id"`
}

// SetSuperuserRequest grants or revokes superuser privileges.
type SetSuperuserRequest struct {
	Superuser bool `json:"superuser"`
}

// UserResponse represents a user and their API keys in admin responses.
type UserResponse struct {
	User *model.User            `json:"user"`
	Keys []model.APIKeyResponse `json:"keys"`
}
