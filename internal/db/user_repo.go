package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"qrstudio/internal/types"
)

// UserRepository provides data access for the users table. Account creation
// and plan changes happen in the billing/auth frontends; this side only
// reads identity and tier.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID. Returns ErrCodeNotFoundUser when the row
// does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, name, plan, created_at, updated_at
		 FROM users
		 WHERE id = $1`,
		id,
	)

	var u types.User
	var name *string
	err := row.Scan(&u.ID, &u.Email, &name, &u.Plan, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	if name != nil {
		u.Name = *name
	}
	return &u, nil
}

// GetPlan returns only the plan tier for a user. It sits on the auth hot
// path, so it reads a single column instead of the full row.
func (r *UserRepository) GetPlan(ctx context.Context, userID string) (types.PlanTier, error) {
	var plan types.PlanTier
	err := r.db.QueryRow(ctx,
		`SELECT plan FROM users WHERE id = $1`,
		userID,
	).Scan(&plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user plan", err)
	}
	return plan, nil
}
