package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrstudio/internal/billing"
	"qrstudio/internal/types"
)

type stubSnapshotter struct {
	plan      types.PlanTier
	decisions map[types.ResourceType]billing.LimitDecision
	err       error
}

func (s *stubSnapshotter) Snapshot(ctx context.Context, userID string) (types.PlanTier, map[types.ResourceType]billing.LimitDecision, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	return s.plan, s.decisions, nil
}

func TestUsageGet(t *testing.T) {
	snap := &stubSnapshotter{
		plan: types.PlanFree,
		decisions: map[types.ResourceType]billing.LimitDecision{
			types.ResourceQRCodes:        {Allowed: true, Current: 48, Limit: 50, Percentage: 96},
			types.ResourceDynamicQRCodes: {Allowed: true, Current: 1, Limit: 10, Percentage: 10},
			types.ResourceAPIKeys:        {Allowed: false, Current: 0, Limit: 0, Percentage: 100},
		},
	}
	h := NewUsageHandler(snap, nil)
	router := chi.NewRouter()
	router.Route("/usage", h.RegisterRoutes)

	req := authedRequest(t, http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.PlanFree, resp.Plan)

	qr := resp.Usage[types.ResourceQRCodes]
	assert.Equal(t, 48, qr.Current)
	assert.Equal(t, 50, qr.Limit)
	require.NotNil(t, qr.Warning, "96 percent usage carries a warning")
	assert.Equal(t, 95, qr.Warning.Level)
	assert.Equal(t, billing.SeverityError, qr.Warning.Severity)

	dynamic := resp.Usage[types.ResourceDynamicQRCodes]
	assert.Nil(t, dynamic.Warning, "low usage has no warning")

	keys := resp.Usage[types.ResourceAPIKeys]
	assert.False(t, keys.Allowed)
	require.NotNil(t, keys.Warning)
	assert.Equal(t, 100, keys.Warning.Level)
}

func TestUsageGetRequiresActor(t *testing.T) {
	h := NewUsageHandler(&stubSnapshotter{}, nil)
	router := chi.NewRouter()
	router.Route("/usage", h.RegisterRoutes)

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
