package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/oauth"
	"github.com/quillbase/quillbase/internal/repository"
)

const kindAPIKey = "api_key"

// Account errors.
var (
	// ErrLoginDisabled is returned when no identity provider is configured.
	ErrLoginDisabled = errors.New("google login is not configured")
	// ErrLoginFailed wraps every reason a login callback is rejected.
	ErrLoginFailed = errors.New("could not validate credentials")
)

// LoginScopes are granted to keys issued by a social login.
var LoginScopes = []string{model.ScopeRead, model.ScopeWrite, model.ScopeMail}

// UserStore persists users.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// AuthInvalidator drops cached auth contexts of a user.
type AuthInvalidator interface {
	InvalidateUserAuthContexts(ctx context.Context, userID string) error
}

// GoogleLogin runs the OAuth code flow. *oauth.Google implements it.
type GoogleLogin interface {
	AuthCodeURL(ctx context.Context) (string, error)
	Exchange(ctx context.Context, state, code string) (*oauth.Profile, error)
}

// AccountService signs users in and manages their API keys.
type AccountService struct {
	users       UserStore
	keys        APIKeyStore
	invalidator AuthInvalidator
	google      GoogleLogin
	keyEnv      string
	deps        Deps
	logger      *slog.Logger
}

// NewAccountService creates an AccountService. google may be nil when
// login is not configured; keyEnv is auth.EnvLive or auth.EnvTest.
func NewAccountService(users UserStore, keys APIKeyStore, invalidator AuthInvalidator, google GoogleLogin, keyEnv string, deps Deps) *AccountService {
	return &AccountService{
		users:       users,
		keys:        keys,
		invalidator: invalidator,
		google:      google,
		keyEnv:      keyEnv,
		deps:        deps,
		logger:      deps.logger().With("component", "account_service"),
	}
}

// LoginURL returns the Google consent URL for a new login.
func (s *AccountService) LoginURL(ctx context.Context) (string, error) {
	if s.google == nil {
		return "", ErrLoginDisabled
	}
	return s.google.AuthCodeURL(ctx)
}

// CompleteLogin finishes a Google login: it signs the profile in, creating
// the user on first login, and issues a fresh API key as the access token.
func (s *AccountService) CompleteLogin(ctx context.Context, state, code string) (*model.User, *model.APIKeyCreateResponse, error) {
	if s.google == nil {
		return nil, nil, ErrLoginDisabled
	}

	profile, err := s.google.Exchange(ctx, state, code)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) || errors.Is(err, oauth.ErrExchangeFailed) || errors.Is(err, oauth.ErrEmailUnverified) {
			s.logger.Warn("google login rejected", "error", err)
			return nil, nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
		}
		return nil, nil, err
	}

	user, err := s.users.GetOrCreateUser(ctx, &model.User{
		ID:        ulid.Make().String(),
		Email:     profile.Email,
		FirstName: profile.GivenName,
		LastName:  profile.FamilyName,
		Picture:   profile.Picture,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get or create user: %w", err)
	}

	key, err := s.IssueKey(ctx, user.ID, "google-login", LoginScopes)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("google login", "user_id", user.ID, "key_id", key.ID)
	return user, key, nil
}

// IssueKey creates an API key for userID. No scopes means read only.
func (s *AccountService) IssueKey(ctx context.Context, userID, name string, scopes []string) (*model.APIKeyCreateResponse, error) {
	for _, scope := range scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, lifecycle.Invalid(kindAPIKey, "invalid scope %q", scope)
		}
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeRead}
	}
	if err := checkLength(kindAPIKey, "name", name, maxNameLength); err != nil {
		return nil, err
	}

	return s.createKey(ctx, &model.APIKey{
		UserID:        userID,
		Scopes:        slices.Clone(scopes),
		RateLimitTier: model.TierFree,
		Name:          name,
	})
}

func (s *AccountService) createKey(ctx context.Context, key *model.APIKey) (*model.APIKeyCreateResponse, error) {
	generated, err := auth.GenerateAPIKey(s.keyEnv)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	key.ID = ulid.Make().String()
	key.KeyHash = generated.Hash
	key.KeyPrefix = generated.Prefix
	key.CreatedAt = s.deps.now()

	if err := s.keys.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}

	s.logger.Info("API key created",
		slog.String("key_id", key.ID),
		slog.String("key_prefix", key.KeyPrefix),
		slog.String("user_id", key.UserID),
	)

	// The plaintext key is returned once and never stored.
	return &model.APIKeyCreateResponse{
		ID:            key.ID,
		Key:           generated.Plaintext,
		Name:          key.Name,
		KeyPrefix:     key.KeyPrefix,
		Scopes:        key.Scopes,
		RateLimitTier: key.RateLimitTier,
		CreatedAt:     key.CreatedAt,
	}, nil
}

// ListKeys returns the keys of userID, revoked ones included.
func (s *AccountService) ListKeys(ctx context.Context, userID string) ([]*model.APIKey, error) {
	return s.keys.ListAPIKeysByUserID(ctx, userID)
}

// ownedKey loads a live key of userID. Keys of other users are reported as
// missing to prevent enumeration.
func (s *AccountService) ownedKey(ctx context.Context, userID, keyID string) (*model.APIKey, error) {
	key, err := s.keys.GetAPIKeyByID(ctx, keyID)
	if errors.Is(err, repository.ErrAPIKeyNotFound) {
		return nil, lifecycle.NotFound(kindAPIKey, keyID)
	}
	if err != nil {
		return nil, err
	}
	if key.UserID != userID || key.IsRevoked() {
		return nil, lifecycle.NotFound(kindAPIKey, keyID)
	}
	return key, nil
}

// RevokeKey revokes a key of userID and drops its cached auth contexts.
func (s *AccountService) RevokeKey(ctx context.Context, userID, keyID string) error {
	if _, err := s.ownedKey(ctx, userID, keyID); err != nil {
		return err
	}

	if err := s.keys.RevokeAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return lifecycle.NotFound(kindAPIKey, keyID)
		}
		return err
	}
	s.invalidate(ctx, userID)

	s.logger.Info("API key revoked", slog.String("key_id", keyID), slog.String("user_id", userID))
	return nil
}

// RotateKey issues a replacement with the same scopes, tier and name, then
// revokes the old key.
func (s *AccountService) RotateKey(ctx context.Context, userID, keyID string) (*model.APIKeyRotateResponse, error) {
	old, err := s.ownedKey(ctx, userID, keyID)
	if err != nil {
		return nil, err
	}

	fresh, err := s.createKey(ctx, &model.APIKey{
		UserID:        old.UserID,
		Scopes:        old.Scopes,
		RateLimitTier: old.RateLimitTier,
		Name:          old.Name,
	})
	if err != nil {
		return nil, err
	}

	if err := s.keys.RevokeAPIKey(ctx, old.ID); err != nil {
		// The new key is already usable.
		s.logger.Error("failed to revoke old API key during rotation",
			slog.String("key_id", old.ID),
			slog.String("error", err.Error()),
		)
	}
	s.invalidate(ctx, userID)

	s.logger.Info("API key rotated",
		slog.String("old_key_id", old.ID),
		slog.String("new_key_id", fresh.ID),
		slog.String("user_id", userID),
	)

	return &model.APIKeyRotateResponse{
		OldKeyID:        old.ID,
		OldKeyRevokedAt: fresh.CreatedAt,
		NewKey:          *fresh,
	}, nil
}

func (s *AccountService) invalidate(ctx context.Context, userID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateUserAuthContexts(ctx, userID); err != nil {
		s.logger.Warn("auth cache invalidation failed", "user_id", userID, "error", err)
	}
}
