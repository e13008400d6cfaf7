package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

type stubCampaignStore struct {
	getFn    func(ctx context.Context, id, userID string) (*types.Campaign, error)
	listFn   func(ctx context.Context, userID string) ([]*types.Campaign, error)
	updateFn func(ctx context.Context, c *types.Campaign) error
	deleteFn func(ctx context.Context, id, userID string) error

	created []*types.Campaign
}

func (s *stubCampaignStore) Create(ctx context.Context, c *types.Campaign) error {
	s.created = append(s.created, c)
	return nil
}

func (s *stubCampaignStore) GetByID(ctx context.Context, id, userID string) (*types.Campaign, error) {
	return s.getFn(ctx, id, userID)
}

func (s *stubCampaignStore) List(ctx context.Context, userID string) ([]*types.Campaign, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubCampaignStore) Update(ctx context.Context, c *types.Campaign) error {
	return s.updateFn(ctx, c)
}

func (s *stubCampaignStore) Delete(ctx context.Context, id, userID string) error {
	return s.deleteFn(ctx, id, userID)
}

func newCampaignRouter(store *stubCampaignStore) chi.Router {
	h := NewCampaignHandler(store, core.NewValidator(nil), nil)
	r := chi.NewRouter()
	r.Route("/campaigns", h.RegisterRoutes)
	return r
}

func TestCampaignCreate(t *testing.T) {
	store := &stubCampaignStore{}
	router := newCampaignRouter(store)

	req := authedRequest(t, http.MethodPost, "/campaigns", map[string]any{
		"name":        "Summer menu",
		"description": "Seasonal table cards",
		"tags":        []string{"summer", "print"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got types.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, strings.HasPrefix(got.ID, "cmp_"))
	assert.Equal(t, "Summer menu", got.Name)
	assert.Equal(t, testUserID, got.UserID)
	require.Len(t, store.created, 1)
}

func TestCampaignCreateRejectsInvertedDates(t *testing.T) {
	store := &stubCampaignStore{}
	router := newCampaignRouter(store)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -7)
	req := authedRequest(t, http.MethodPost, "/campaigns", map[string]any{
		"name":      "Backwards",
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.created)
}

func TestCampaignUpdate(t *testing.T) {
	existing := &types.Campaign{ID: "cmp_1", UserID: testUserID, Name: "Old name"}
	var updated *types.Campaign
	store := &stubCampaignStore{
		getFn: func(ctx context.Context, id, userID string) (*types.Campaign, error) {
			require.Equal(t, "cmp_1", id)
			return existing, nil
		},
		updateFn: func(ctx context.Context, c *types.Campaign) error {
			updated = c
			return nil
		},
	}
	router := newCampaignRouter(store)

	req := authedRequest(t, http.MethodPatch, "/campaigns/cmp_1", map[string]any{
		"name": "New name",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, updated)
	assert.Equal(t, "New name", updated.Name)
}

func TestCampaignGetNotFound(t *testing.T) {
	store := &stubCampaignStore{
		getFn: func(ctx context.Context, id, userID string) (*types.Campaign, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCampaign, "Campaign not found", nil)
		},
	}
	router := newCampaignRouter(store)

	req := authedRequest(t, http.MethodGet, "/campaigns/cmp_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCampaignDelete(t *testing.T) {
	var deletedID string
	store := &stubCampaignStore{
		deleteFn: func(ctx context.Context, id, userID string) error {
			deletedID = id
			return nil
		},
	}
	router := newCampaignRouter(store)

	req := authedRequest(t, http.MethodDelete, "/campaigns/cmp_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "cmp_1", deletedID)
}

func TestCampaignListEmpty(t *testing.T) {
	router := newCampaignRouter(&stubCampaignStore{})

	req := authedRequest(t, http.MethodGet, "/campaigns", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"campaigns":[]}`, rec.Body.String())
}
