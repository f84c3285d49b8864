package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/quillbase/quillbase/internal/model"
)

// ErrAPIKeyNotFound is returned for unknown or already revoked keys.
var ErrAPIKeyNotFound = errors.New("API key not found")

const apiKeyColumns = `k.id, k.user_id, k.key_hash, k.key_prefix, k.scopes, k.rate_limit_tier,
	k.name, k.revoked_at, k.last_used_at, k.created_at`

// CreateAPIKey stores a freshly issued key. Only the hash of the secret is
// persisted.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, scopes, rate_limit_tier, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	if _, err := r.pool.Exec(ctx, query,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, pq.Array(scopes),
		key.RateLimitTier, key.Name, key.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("API key %s already exists: %w", key.ID, err)
		}
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}

// GetAPIKeyByID returns a key, revoked or not.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys k WHERE k.id = $1`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	key, err := pgx.CollectExactlyOneRow(rows, scanAPIKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	return key, nil
}

// FindCredentials returns the active keys sharing prefix, each joined with
// its owner's superuser flag. More than one row means a prefix collision;
// the caller verifies the secret against every candidate.
func (r *Repository) FindCredentials(ctx context.Context, prefix string) ([]*model.Credential, error) {
	query := `
		SELECT ` + apiKeyColumns + `, COALESCE(u.is_superuser, FALSE)
		FROM api_keys k
		LEFT JOIN users u ON u.id = k.user_id
		WHERE k.key_prefix = $1 AND k.revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find credentials: %w", err)
	}
	creds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Credential, error) {
		var (
			cred model.Credential
			key  model.APIKey
		)
		if err := row.Scan(append(apiKeyDest(&key), &cred.IsSuperuser)...); err != nil {
			return nil, err
		}
		cred.Key = &key
		return &cred, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan credentials: %w", err)
	}
	return creds, nil
}

// ListAPIKeysByUserID returns every key of a user, newest first.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys k WHERE k.user_id = $1 ORDER BY k.created_at DESC, k.id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, scanAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to scan API keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey stamps revoked_at on an active key. Revoking twice reports
// ErrAPIKeyNotFound.
func (r *Repository) RevokeAPIKey(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// TouchAPIKey records that an active key was just used.
func (r *Repository) TouchAPIKey(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id); err != nil {
		return fmt.Errorf("failed to touch API key: %w", err)
	}
	return nil
}

func apiKeyDest(key *model.APIKey) []any {
	return []any{
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, pq.Array(&key.Scopes),
		&key.RateLimitTier, &key.Name, &key.RevokedAt, &key.LastUsedAt, &key.CreatedAt,
	}
}

func scanAPIKey(row pgx.CollectableRow) (*model.APIKey, error) {
	var key model.APIKey
	if err := row.Scan(apiKeyDest(&key)...); err != nil {
		return nil, err
	}
	return &key, nil
}
