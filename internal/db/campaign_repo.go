package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"qrstudio/internal/types"
)

// CampaignRepository provides data access for the campaigns table.
type CampaignRepository struct {
	db DBTX
}

// NewCampaignRepository creates a new CampaignRepository backed by the given
// database connection (pool or transaction).
func NewCampaignRepository(db DBTX) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// campaignColumns selects campaign fields plus a live count of attached QR
// codes. Every query joins the same way so QRCount is always populated.
const campaignColumns = `c.id, c.user_id, c.name, c.description, c.start_date, c.end_date,
	c.tags, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM qr_codes q WHERE q.campaign_id = c.id) AS qr_count`

func scanCampaign(row pgx.Row) (*types.Campaign, error) {
	var c types.Campaign
	var description *string
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&description,
		&c.StartDate,
		&c.EndDate,
		&c.Tags,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.QRCount,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		c.Description = *description
	}
	return &c, nil
}

// Create inserts a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, c *types.Campaign) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO campaigns (id, user_id, name, description, start_date, end_date, tags,
		 created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()), COALESCE($8, NOW()))`,
		c.ID,
		c.UserID,
		c.Name,
		nilIfEmpty(c.Description),
		c.StartDate,
		c.EndDate,
		c.Tags,
		nilIfZeroTime(c.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create campaign", err)
	}
	return nil
}

// GetByID retrieves a campaign owned by the given user.
func (r *CampaignRepository) GetByID(ctx context.Context, id, userID string) (*types.Campaign, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+campaignColumns+`
		 FROM campaigns c
		 WHERE c.id = $1 AND c.user_id = $2`,
		id,
		userID,
	)

	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCampaign, "Campaign not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve campaign", err)
	}
	return c, nil
}

// List returns all campaigns owned by a user, newest first.
func (r *CampaignRepository) List(ctx context.Context, userID string) ([]*types.Campaign, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+campaignColumns+`
		 FROM campaigns c
		 WHERE c.user_id = $1
		 ORDER BY c.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list campaigns", err)
	}
	defer rows.Close()

	var campaigns []*types.Campaign
	for rows.Next() {
		c, scanErr := scanCampaign(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan campaign", scanErr)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate campaigns", err)
	}
	return campaigns, nil
}

// Update persists campaign field changes.
func (r *CampaignRepository) Update(ctx context.Context, c *types.Campaign) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE campaigns SET name = $1, description = $2, start_date = $3, end_date = $4,
		 tags = $5, updated_at = NOW()
		 WHERE id = $6 AND user_id = $7`,
		c.Name,
		nilIfEmpty(c.Description),
		c.StartDate,
		c.EndDate,
		c.Tags,
		c.ID,
		c.UserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update campaign", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCampaign, "Campaign not found", nil)
	}
	return nil
}

// Delete removes a campaign and detaches its QR codes. The codes survive
// with campaign_id set to NULL; only the grouping is lost.
func (r *CampaignRepository) Delete(ctx context.Context, id, userID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE qr_codes SET campaign_id = NULL WHERE campaign_id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to detach qr codes", err)
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete campaign", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCampaign, "Campaign not found", nil)
	}
	return nil
}
