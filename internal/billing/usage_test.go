package billing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrstudio/internal/types"
)

// mockUsageCounter returns fixed counts per resource kind.
type mockUsageCounter struct {
	qrCodes        int
	dynamicQRCodes int
	teamMembers    int
	apiKeys        int

	err error
}

func (m *mockUsageCounter) CountQRCodes(ctx context.Context, userID string) (int, error) {
	return m.qrCodes, m.err
}

func (m *mockUsageCounter) CountDynamicQRCodes(ctx context.Context, userID string) (int, error) {
	return m.dynamicQRCodes, m.err
}

func (m *mockUsageCounter) CountTeamMembers(ctx context.Context, ownerID string) (int, error) {
	return m.teamMembers, m.err
}

func (m *mockUsageCounter) CountAPIKeys(ctx context.Context, userID string) (int, error) {
	return m.apiKeys, m.err
}

// mockPlanLookup resolves every user to a fixed plan, or to not-found.
type mockPlanLookup struct {
	plan     types.PlanTier
	notFound bool
}

func (m *mockPlanLookup) GetPlan(ctx context.Context, userID string) (types.PlanTier, error) {
	if m.notFound {
		return "", types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return m.plan, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUsageService(plan types.PlanTier, counts *mockUsageCounter) *UsageService {
	return NewUsageService(
		NewStaticPlanRegistry(),
		counts,
		&mockPlanLookup{plan: plan},
		types.MissingUserFallbackFree,
		testLogger(),
	)
}

func TestCheckResourceLimit_UnderQuota(t *testing.T) {
	svc := newTestUsageService(types.PlanFree, &mockUsageCounter{qrCodes: 10})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceQRCodes, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Current)
	assert.Equal(t, 50, d.Limit)
	assert.InDelta(t, 20.0, d.Percentage, 0.001)
}

func TestCheckResourceLimit_AtQuotaBlocks(t *testing.T) {
	// FREE user with 50 existing codes, at the limit: creating one more
	// must be blocked with current=50, limit=50, percentage=100.
	svc := newTestUsageService(types.PlanFree, &mockUsageCounter{qrCodes: 50})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceQRCodes, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50, d.Current)
	assert.Equal(t, 50, d.Limit)
	assert.InDelta(t, 100.0, d.Percentage, 0.001)
}

func TestCheckResourceLimit_LastSlotAllowed(t *testing.T) {
	svc := newTestUsageService(types.PlanFree, &mockUsageCounter{qrCodes: 49})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceQRCodes, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "current < limit must be allowed")
}

func TestCheckResourceLimit_ZeroLimitAlwaysBlocked(t *testing.T) {
	// FREE dynamic quota is 0: blocked regardless of current count, and
	// no percentage division happens.
	svc := newTestUsageService(types.PlanFree, &mockUsageCounter{dynamicQRCodes: 0})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceDynamicQRCodes, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Limit)
	assert.Zero(t, d.Percentage)
}

func TestCheckResourceLimit_EnterpriseUnlimited(t *testing.T) {
	svc := newTestUsageService(types.PlanEnterprise, &mockUsageCounter{qrCodes: 1_000_000})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceQRCodes, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, Unlimited, d.Limit)
}

func TestCheckResourceLimit_BulkComparesBatchSize(t *testing.T) {
	svc := newTestUsageService(types.PlanPro, &mockUsageCounter{})

	// batchSize <= limit is allowed; no storage count is consulted.
	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceBulkGeneration, 1000)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1000, d.Current)
	assert.Equal(t, 1000, d.Limit)

	d, err = svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceBulkGeneration, 1001)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCheckResourceLimit_BulkZeroQuota(t *testing.T) {
	svc := newTestUsageService(types.PlanFree, &mockUsageCounter{})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceBulkGeneration, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Limit)
}

func TestCheckResourceLimit_TeamMembers_Business(t *testing.T) {
	// BUSINESS with 3 members inviting a 4th: allowed against limit 10.
	svc := newTestUsageService(types.PlanBusiness, &mockUsageCounter{teamMembers: 3})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceTeamMembers, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Limit)

	// At 10 members the 11th is blocked.
	svc = newTestUsageService(types.PlanBusiness, &mockUsageCounter{teamMembers: 10})
	d, err = svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceTeamMembers, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCheckResourceLimit_APIKeys_NoAPIAccessGate(t *testing.T) {
	// PRO has a nonzero key cap but apiCalls=0: the access gate blocks
	// with limit=0 before any key counting.
	counter := &mockUsageCounter{apiKeys: 0}
	svc := newTestUsageService(types.PlanPro, counter)

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceAPIKeys, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Limit)
}

func TestCheckResourceLimit_APIKeys_BusinessCap(t *testing.T) {
	svc := newTestUsageService(types.PlanBusiness, &mockUsageCounter{apiKeys: 4})

	d, err := svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceAPIKeys, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Limit)

	svc = newTestUsageService(types.PlanBusiness, &mockUsageCounter{apiKeys: 5})
	d, err = svc.CheckResourceLimit(context.Background(), "usr_1", types.ResourceAPIKeys, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCheckResourceLimit_MissingUser_FallbackFree(t *testing.T) {
	svc := NewUsageService(
		NewStaticPlanRegistry(),
		&mockUsageCounter{qrCodes: 50},
		&mockPlanLookup{notFound: true},
		types.MissingUserFallbackFree,
		testLogger(),
	)

	// Unknown user resolves as FREE: 50 existing codes is at the limit.
	d, err := svc.CheckResourceLimit(context.Background(), "usr_gone", types.ResourceQRCodes, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50, d.Limit)
}

func TestCheckResourceLimit_MissingUser_ErrorPolicy(t *testing.T) {
	svc := NewUsageService(
		NewStaticPlanRegistry(),
		&mockUsageCounter{},
		&mockPlanLookup{notFound: true},
		types.MissingUserError,
		testLogger(),
	)

	_, err := svc.CheckResourceLimit(context.Background(), "usr_gone", types.ResourceQRCodes, 1)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func TestSnapshot_AllResources(t *testing.T) {
	svc := newTestUsageService(types.PlanBusiness, &mockUsageCounter{
		qrCodes:        250,
		dynamicQRCodes: 100,
		teamMembers:    2,
		apiKeys:        1,
	})

	plan, decisions, err := svc.Snapshot(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanBusiness, plan)
	require.Len(t, decisions, 4)

	assert.Equal(t, 250, decisions[types.ResourceQRCodes].Current)
	assert.InDelta(t, 25.0, decisions[types.ResourceQRCodes].Percentage, 0.001)
	assert.Equal(t, 100, decisions[types.ResourceDynamicQRCodes].Current)
	assert.True(t, decisions[types.ResourceTeamMembers].Allowed)
	assert.True(t, decisions[types.ResourceAPIKeys].Allowed)
}

func TestQuotaError_CarriesDecisionDetails(t *testing.T) {
	err := QuotaError(types.ErrCodeLimitExceeded, "QR code limit reached", LimitDecision{
		Allowed:    false,
		Current:    50,
		Limit:      50,
		Percentage: 100,
	})

	assert.Equal(t, types.ErrCodeLimitExceeded, err.Code)
	assert.Equal(t, 50, err.Details["current"])
	assert.Equal(t, 50, err.Details["limit"])
	assert.Equal(t, 100.0, err.Details["percentage"])
	assert.Equal(t, 403, err.HTTPStatus())
}
