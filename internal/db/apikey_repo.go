package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"qrstudio/internal/types"
)

// APIKeyRepository provides data access for the api_keys table. Secrets are
// stored as bcrypt hashes; the plaintext prefix is kept for display and for
// the authentication lookup.
type APIKeyRepository struct {
	db DBTX
}

// NewAPIKeyRepository creates a new APIKeyRepository backed by the given
// database connection (pool or transaction).
func NewAPIKeyRepository(db DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `id, user_id, name, prefix, secret_hash, last_used_at, revoked_at, created_at`

func scanAPIKey(row pgx.Row) (*types.APIKey, error) {
	var k types.APIKey
	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.Name,
		&k.Prefix,
		&k.SecretHash,
		&k.LastUsedAt,
		&k.RevokedAt,
		&k.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Create inserts a new API key record.
func (r *APIKeyRepository) Create(ctx context.Context, k *types.APIKey) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, prefix, secret_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		k.ID,
		k.UserID,
		k.Name,
		k.Prefix,
		k.SecretHash,
		nilIfZeroTime(k.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create api key", err)
	}
	return nil
}

// List returns all of a user's keys, newest first, revoked ones included.
func (r *APIKeyRepository) List(ctx context.Context, userID string) ([]*types.APIKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+apiKeyColumns+`
		 FROM api_keys
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list api keys", err)
	}
	defer rows.Close()

	var keys []*types.APIKey
	for rows.Next() {
		k, scanErr := scanAPIKey(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan api key", scanErr)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate api keys", err)
	}
	return keys, nil
}

// GetByPrefix retrieves a key by its plaintext display prefix. The prefix
// column is uniquely indexed.
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*types.APIKey, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+`
		 FROM api_keys
		 WHERE prefix = $1`,
		prefix,
	)

	k, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAPIKey, "API key not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve api key", err)
	}
	return k, nil
}

// Revoke marks a key as revoked. Idempotent per key: revoking twice returns
// not found the second time because the first revocation consumed the row.
func (r *APIKeyRepository) Revoke(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to revoke api key", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAPIKey, "API key not found", nil)
	}
	return nil
}

// CountActiveByUser returns the number of non-revoked keys a user holds.
func (r *APIKeyRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count api keys", err)
	}
	return count, nil
}

// TouchLastUsed updates the key's last_used_at timestamp.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, keyID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`,
		keyID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update last used", err)
	}
	return nil
}
