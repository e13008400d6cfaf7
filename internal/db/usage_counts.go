package db

import "context"

// UsageCounts combines the per-repository counters into the single counter
// surface the plan-limit checker consumes.
type UsageCounts struct {
	qrCodes *QRCodeRepository
	team    *TeamRepository
	keys    *APIKeyRepository
}

// NewUsageCounts creates a UsageCounts over the given repositories.
func NewUsageCounts(qrCodes *QRCodeRepository, team *TeamRepository, keys *APIKeyRepository) *UsageCounts {
	return &UsageCounts{qrCodes: qrCodes, team: team, keys: keys}
}

func (u *UsageCounts) CountQRCodes(ctx context.Context, userID string) (int, error) {
	return u.qrCodes.CountByUser(ctx, userID)
}

func (u *UsageCounts) CountDynamicQRCodes(ctx context.Context, userID string) (int, error) {
	return u.qrCodes.CountDynamicByUser(ctx, userID)
}

func (u *UsageCounts) CountTeamMembers(ctx context.Context, ownerID string) (int, error) {
	return u.team.CountByOwner(ctx, ownerID)
}

func (u *UsageCounts) CountAPIKeys(ctx context.Context, userID string) (int, error) {
	return u.keys.CountActiveByUser(ctx, userID)
}
