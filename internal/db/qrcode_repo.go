package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"qrstudio/internal/types"
)

// QRCodeRepository provides data access for the qr_codes table.
type QRCodeRepository struct {
	db DBTX
}

// NewQRCodeRepository creates a new QRCodeRepository backed by the given
// database connection (pool or transaction).
func NewQRCodeRepository(db DBTX) *QRCodeRepository {
	return &QRCodeRepository{db: db}
}

// QRCodeFilter narrows List results. Zero values mean "no filter".
type QRCodeFilter struct {
	Search     string
	Type       types.QRCodeType
	CampaignID string
	Favorite   *bool
	Page       int
	Limit      int
}

// qrCodeColumns is the standard column set for QR code queries. Kept in one
// place so scanQRCode stays aligned with every SELECT.
const qrCodeColumns = `id, user_id, name, type, content, content_type, destination,
	short_code, design, password_hash, expires_at, favorite, tags, campaign_id,
	scan_count, created_at, updated_at`

func scanQRCode(row pgx.Row) (*types.QRCode, error) {
	var q types.QRCode
	var (
		name         *string
		destination  *string
		shortCode    *string
		designRaw    []byte
		passwordHash *string
	)
	err := row.Scan(
		&q.ID,
		&q.UserID,
		&name,
		&q.Type,
		&q.Content,
		&q.ContentType,
		&destination,
		&shortCode,
		&designRaw,
		&passwordHash,
		&q.ExpiresAt,
		&q.Favorite,
		&q.Tags,
		&q.CampaignID,
		&q.ScanCount,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		q.Name = *name
	}
	if destination != nil {
		q.Destination = *destination
	}
	if shortCode != nil {
		q.ShortCode = *shortCode
	}
	if passwordHash != nil {
		q.PasswordHash = *passwordHash
		q.HasPassword = true
	}
	if len(designRaw) > 0 {
		var design types.DesignOptions
		if err := json.Unmarshal(designRaw, &design); err != nil {
			return nil, fmt.Errorf("decode design options: %w", err)
		}
		q.Design = &design
	}
	return &q, nil
}

// Create inserts a new QR code. Returns ErrCodeConflictShortCode when the
// short code collides with an existing row.
func (r *QRCodeRepository) Create(ctx context.Context, q *types.QRCode) error {
	designRaw, err := marshalDesign(q.Design)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode design options", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO qr_codes (id, user_id, name, type, content, content_type, destination,
		 short_code, design, password_hash, expires_at, favorite, tags, campaign_id,
		 scan_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0,
		 COALESCE($15, NOW()), COALESCE($15, NOW()))`,
		q.ID,
		q.UserID,
		nilIfEmpty(q.Name),
		q.Type,
		q.Content,
		q.ContentType,
		nilIfEmpty(q.Destination),
		nilIfEmpty(q.ShortCode),
		designRaw,
		nilIfEmpty(q.PasswordHash),
		q.ExpiresAt,
		q.Favorite,
		q.Tags,
		q.CampaignID,
		nilIfZeroTime(q.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictShortCode, "short code already in use", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create qr code", err)
	}
	return nil
}

// CreateBatch inserts multiple QR codes in a single round trip using a pgx
// batch. Used by bulk generation after the quota check has passed.
func (r *QRCodeRepository) CreateBatch(ctx context.Context, codes []*types.QRCode) error {
	if len(codes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range codes {
		designRaw, err := marshalDesign(q.Design)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode design options", err)
		}
		batch.Queue(
			`INSERT INTO qr_codes (id, user_id, name, type, content, content_type, destination,
			 short_code, design, password_hash, expires_at, favorite, tags, campaign_id,
			 scan_count, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0, NOW(), NOW())`,
			q.ID, q.UserID, nilIfEmpty(q.Name), q.Type, q.Content, q.ContentType,
			nilIfEmpty(q.Destination), nilIfEmpty(q.ShortCode), designRaw,
			nilIfEmpty(q.PasswordHash), q.ExpiresAt, q.Favorite, q.Tags, q.CampaignID,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range codes {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return types.NewAppError(types.ErrCodeConflictShortCode, "short code already in use", err)
			}
			return types.NewAppError(types.ErrCodeInternalDB, "failed to create qr codes", err)
		}
	}
	return nil
}

// GetByID retrieves a QR code owned by the given user.
func (r *QRCodeRepository) GetByID(ctx context.Context, id, userID string) (*types.QRCode, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+qrCodeColumns+`
		 FROM qr_codes
		 WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)

	q, err := scanQRCode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundQRCode, "QR code not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve qr code", err)
	}
	return q, nil
}

// GetByShortCode retrieves a QR code by its globally unique short code.
// Used by the redirect path, which has no authenticated user scope.
func (r *QRCodeRepository) GetByShortCode(ctx context.Context, code string) (*types.QRCode, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+qrCodeColumns+`
		 FROM qr_codes
		 WHERE short_code = $1`,
		code,
	)

	q, err := scanQRCode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundShortCode, "Short link not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve qr code by short code", err)
	}
	return q, nil
}

// List returns a page of the user's QR codes plus the unpaginated total,
// newest first. Filters compose with AND.
func (r *QRCodeRepository) List(ctx context.Context, userID string, filter QRCodeFilter) ([]*types.QRCode, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR content ILIKE $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.CampaignID != "" {
		args = append(args, filter.CampaignID)
		where = append(where, fmt.Sprintf("campaign_id = $%d", len(args)))
	}
	if filter.Favorite != nil {
		args = append(args, *filter.Favorite)
		where = append(where, fmt.Sprintf("favorite = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM qr_codes WHERE `+whereClause,
		args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count qr codes", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM qr_codes WHERE %s
		 ORDER BY created_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, qrCodeColumns, whereClause, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list qr codes", err)
	}
	defer rows.Close()

	var codes []*types.QRCode
	for rows.Next() {
		q, scanErr := scanQRCode(rows)
		if scanErr != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan qr code", scanErr)
		}
		codes = append(codes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate qr codes", err)
	}
	return codes, total, nil
}

// Update persists the mutable fields of a QR code. The type and short code
// are immutable after creation.
func (r *QRCodeRepository) Update(ctx context.Context, q *types.QRCode) error {
	designRaw, err := marshalDesign(q.Design)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode design options", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE qr_codes SET name = $1, content = $2, destination = $3, design = $4,
		 password_hash = $5, expires_at = $6, favorite = $7, tags = $8, campaign_id = $9,
		 updated_at = NOW()
		 WHERE id = $10 AND user_id = $11`,
		nilIfEmpty(q.Name),
		q.Content,
		nilIfEmpty(q.Destination),
		designRaw,
		nilIfEmpty(q.PasswordHash),
		q.ExpiresAt,
		q.Favorite,
		q.Tags,
		q.CampaignID,
		q.ID,
		q.UserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update qr code", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundQRCode, "QR code not found", nil)
	}
	return nil
}

// Delete removes a QR code. Scan rows cascade at the schema level.
func (r *QRCodeRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM qr_codes WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete qr code", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundQRCode, "QR code not found", nil)
	}
	return nil
}

// CountByUser returns the total number of QR codes a user owns.
func (r *QRCodeRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM qr_codes WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count qr codes", err)
	}
	return count, nil
}

// CountDynamicByUser returns the number of dynamic QR codes a user owns.
func (r *QRCodeRepository) CountDynamicByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM qr_codes WHERE user_id = $1 AND type = 'dynamic'`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count dynamic qr codes", err)
	}
	return count, nil
}

// ShortCodeExists reports whether a short code is already taken. Feeds the
// generator's uniqueness loop.
func (r *QRCodeRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM qr_codes WHERE short_code = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check short code", err)
	}
	return exists, nil
}

// IncrementScanCount bumps the denormalized scan counter on the QR code row.
func (r *QRCodeRepository) IncrementScanCount(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE qr_codes SET scan_count = scan_count + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to increment scan count", err)
	}
	return nil
}

func marshalDesign(d *types.DesignOptions) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
