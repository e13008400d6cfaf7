package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"qrstudio/internal/types"
)

// WebhookRepository provides data access for webhook_subscriptions. Events
// are stored as a text[] of event type names.
type WebhookRepository struct {
	db DBTX
}

// NewWebhookRepository creates a new WebhookRepository backed by the given
// database connection (pool or transaction).
func NewWebhookRepository(db DBTX) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookColumns = `id, user_id, url, secret, events, active, created_at`

func scanSubscription(row pgx.Row) (*types.WebhookSubscription, error) {
	var sub types.WebhookSubscription
	var events []string
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.URL,
		&sub.Secret,
		&events,
		&sub.Active,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Events = make([]types.EventType, len(events))
	for i, e := range events {
		sub.Events[i] = types.EventType(e)
	}
	return &sub, nil
}

func eventStrings(events []types.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

// Create inserts a new subscription.
func (r *WebhookRepository) Create(ctx context.Context, sub *types.WebhookSubscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO webhook_subscriptions (id, user_id, url, secret, events, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		sub.ID,
		sub.UserID,
		sub.URL,
		sub.Secret,
		eventStrings(sub.Events),
		sub.Active,
		nilIfZeroTime(sub.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create webhook subscription", err)
	}
	return nil
}

// GetByID retrieves a subscription owned by the given user.
func (r *WebhookRepository) GetByID(ctx context.Context, id, userID string) (*types.WebhookSubscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+webhookColumns+`
		 FROM webhook_subscriptions
		 WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "Webhook subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve webhook subscription", err)
	}
	return sub, nil
}

// List returns all of a user's subscriptions.
func (r *WebhookRepository) List(ctx context.Context, userID string) ([]*types.WebhookSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+webhookColumns+`
		 FROM webhook_subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list webhook subscriptions", err)
	}
	defer rows.Close()

	var subs []*types.WebhookSubscription
	for rows.Next() {
		sub, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan webhook subscription", scanErr)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate webhook subscriptions", err)
	}
	return subs, nil
}

// ListActiveByUserAndEvent returns the active subscriptions of a user that
// include the given event type. Called by the dispatcher per event.
func (r *WebhookRepository) ListActiveByUserAndEvent(ctx context.Context, userID string, event types.EventType) ([]*types.WebhookSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+webhookColumns+`
		 FROM webhook_subscriptions
		 WHERE user_id = $1 AND active AND $2 = ANY(events)`,
		userID,
		string(event),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list webhook subscriptions", err)
	}
	defer rows.Close()

	var subs []*types.WebhookSubscription
	for rows.Next() {
		sub, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan webhook subscription", scanErr)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate webhook subscriptions", err)
	}
	return subs, nil
}

// Update persists changes to a subscription's URL, event list, and active
// flag. The signing secret is immutable after creation.
func (r *WebhookRepository) Update(ctx context.Context, sub *types.WebhookSubscription) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE webhook_subscriptions SET url = $1, events = $2, active = $3
		 WHERE id = $4 AND user_id = $5`,
		sub.URL,
		eventStrings(sub.Events),
		sub.Active,
		sub.ID,
		sub.UserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update webhook subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "Webhook subscription not found", nil)
	}
	return nil
}

// Delete removes a subscription.
func (r *WebhookRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM webhook_subscriptions WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete webhook subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "Webhook subscription not found", nil)
	}
	return nil
}
