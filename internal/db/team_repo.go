package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"qrstudio/internal/types"
)

// TeamRepository provides data access for the team_members table. Members
// are seats on an owner's account, counted against the plan cap whether
// invited or active.
type TeamRepository struct {
	db DBTX
}

// NewTeamRepository creates a new TeamRepository backed by the given
// database connection (pool or transaction).
func NewTeamRepository(db DBTX) *TeamRepository {
	return &TeamRepository{db: db}
}

func scanTeamMember(row pgx.Row) (*types.TeamMember, error) {
	var m types.TeamMember
	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.Email,
		&m.Role,
		&m.Status,
		&m.InvitedAt,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns all team members on an owner's account, oldest invite first.
func (r *TeamRepository) List(ctx context.Context, ownerID string) ([]*types.TeamMember, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner_id, email, role, status, invited_at, joined_at
		 FROM team_members
		 WHERE owner_id = $1
		 ORDER BY invited_at`,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list team members", err)
	}
	defer rows.Close()

	var members []*types.TeamMember
	for rows.Next() {
		m, scanErr := scanTeamMember(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan team member", scanErr)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate team members", err)
	}
	return members, nil
}

// Create inserts a new invited member. Returns ErrCodeConflictEmail when the
// email is already on the team.
func (r *TeamRepository) Create(ctx context.Context, m *types.TeamMember) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO team_members (id, owner_id, email, role, status, invited_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		m.ID,
		m.OwnerID,
		m.Email,
		m.Role,
		m.Status,
		nilIfZeroTime(m.InvitedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "member already invited", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create team member", err)
	}
	return nil
}

// Delete removes a member from the owner's team.
func (r *TeamRepository) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM team_members WHERE id = $1 AND owner_id = $2`,
		id,
		ownerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete team member", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTeamMember, "Team member not found", nil)
	}
	return nil
}

// CountByOwner returns the number of seats in use, including pending
// invites.
func (r *TeamRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members WHERE owner_id = $1`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count team members", err)
	}
	return count, nil
}
