package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quillbase/quillbase/internal/model"
)

// Common errors for contact PIN repository operations.
var (
	ErrContactPinNotFound = errors.New("contact pin not found")
	ErrContactPinExists   = errors.New("contact pin already exists")
)

// CreateContactPin inserts a PIN for an email address.
func (r *Repository) CreateContactPin(ctx context.Context, pin *model.ContactPin) error {
	query := `
		INSERT INTO contact_pins (id, email, code_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		pin.ID,
		pin.Email,
		pin.CodeHash,
		pin.CreatedAt,
		pin.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrContactPinExists
		}
		return fmt.Errorf("failed to create contact pin: %w", err)
	}

	return nil
}

// GetContactPinByEmail retrieves the PIN registered for email.
func (r *Repository) GetContactPinByEmail(ctx context.Context, email string) (*model.ContactPin, error) {
	query := `
		SELECT id, email, code_hash, created_at, updated_at
		FROM contact_pins
		WHERE email = $1
	`

	var pin model.ContactPin
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&pin.ID,
		&pin.Email,
		&pin.CodeHash,
		&pin.CreatedAt,
		&pin.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactPinNotFound
		}
		return nil, fmt.Errorf("failed to get contact pin: %w", err)
	}

	return &pin, nil
}

// UpdateContactPinCode replaces the PIN hash for pin.Email.
func (r *Repository) UpdateContactPinCode(ctx context.Context, pin *model.ContactPin) error {
	query := `
		UPDATE contact_pins
		SET code_hash = $2, updated_at = $3
		WHERE email = $1
	`

	result, err := r.pool.Exec(ctx, query, pin.Email, pin.CodeHash, pin.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update contact pin: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrContactPinNotFound
	}

	return nil
}
