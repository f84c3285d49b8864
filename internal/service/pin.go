package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/oklog/ulid/v2"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/repository"
)

const kindContactPin = "contact_pin"

var pinFormat = regexp.MustCompile(`^[0-9]{4,12}$`)

// PinStore persists contact PINs.
type PinStore interface {
	CreateContactPin(ctx context.Context, pin *model.ContactPin) error
	GetContactPinByEmail(ctx context.Context, email string) (*model.ContactPin, error)
	UpdateContactPinCode(ctx context.Context, pin *model.ContactPin) error
}

// PinService guards contact access behind a per-email PIN.
type PinService struct {
	store  PinStore
	params auth.Params
	deps   Deps
	logger *slog.Logger
}

// NewPinService creates a PinService hashing with auth.DefaultParams.
func NewPinService(store PinStore, deps Deps) *PinService {
	return &PinService{
		store:  store,
		params: auth.DefaultParams,
		deps:   deps,
		logger: deps.logger().With("component", "pin_service"),
	}
}

// SetHashParams changes the Argon2id cost for new hashes.
func (s *PinService) SetHashParams(p auth.Params) {
	s.params = p
}

func (s *PinService) input(email, code string) (string, error) {
	email, err := normalizeEmail(kindContactPin, email)
	if err != nil {
		return "", err
	}
	if !pinFormat.MatchString(code) {
		return "", lifecycle.Invalid(kindContactPin, "pin must be 4 to 12 digits")
	}
	return email, nil
}

// Create registers a PIN for email. An email can hold one PIN.
func (s *PinService) Create(ctx context.Context, email, code string) (*model.ContactPin, error) {
	email, err := s.input(email, code)
	if err != nil {
		return nil, err
	}

	hash, err := s.params.Hash(code)
	if err != nil {
		return nil, err
	}

	now := s.deps.now()
	pin := &model.ContactPin{
		ID:        ulid.Make().String(),
		Email:     email,
		CodeHash:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateContactPin(ctx, pin); err != nil {
		if errors.Is(err, repository.ErrContactPinExists) {
			return nil, lifecycle.Conflict(kindContactPin, "email already has a pin")
		}
		return nil, err
	}

	s.logger.Info("contact pin created", "pin_id", pin.ID)
	return pin, nil
}

// Login checks code against the PIN of email. Unknown emails and wrong
// PINs are indistinguishable to the caller.
func (s *PinService) Login(ctx context.Context, email, code string) error {
	email, err := s.input(email, code)
	if err != nil {
		return err
	}

	pin, err := s.store.GetContactPinByEmail(ctx, email)
	if errors.Is(err, repository.ErrContactPinNotFound) {
		// Burn comparable time so response latency does not reveal the email.
		_, _ = s.params.Hash(code)
		return lifecycle.Forbidden(kindContactPin, "", "pin incorrect")
	}
	if err != nil {
		return err
	}

	ok, err := auth.VerifySecret(code, pin.CodeHash)
	if err != nil {
		return err
	}
	if !ok {
		return lifecycle.Forbidden(kindContactPin, "", "pin incorrect")
	}

	if auth.NeedsRehash(pin.CodeHash, s.params) {
		s.rehash(ctx, pin, code)
	}
	return nil
}

// Reset replaces the PIN of a registered email.
func (s *PinService) Reset(ctx context.Context, email, code string) error {
	email, err := s.input(email, code)
	if err != nil {
		return err
	}

	hash, err := s.params.Hash(code)
	if err != nil {
		return err
	}

	pin := &model.ContactPin{Email: email, CodeHash: hash, UpdatedAt: s.deps.now()}
	if err := s.store.UpdateContactPinCode(ctx, pin); err != nil {
		if errors.Is(err, repository.ErrContactPinNotFound) {
			return lifecycle.NotFound(kindContactPin, email)
		}
		return err
	}
	return nil
}

func (s *PinService) rehash(ctx context.Context, pin *model.ContactPin, code string) {
	hash, err := s.params.Hash(code)
	if err != nil {
		return
	}
	pin.CodeHash = hash
	pin.UpdatedAt = s.deps.now()
	if err := s.store.UpdateContactPinCode(ctx, pin); err != nil {
		s.logger.Warn("pin rehash failed", "pin_id", pin.ID, "error", err)
	}
}
