package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrstudio/internal/db"
	"qrstudio/internal/types"
)

type stubScanAnalytics struct {
	overviewFn func(ctx context.Context, userID string, since time.Time) (*db.Overview, error)
	scans      []*types.Scan
}

func (s *stubScanAnalytics) GetOverview(ctx context.Context, userID string, since time.Time) (*db.Overview, error) {
	return s.overviewFn(ctx, userID, since)
}

func (s *stubScanAnalytics) ForEachScan(ctx context.Context, userID string, since time.Time, fn func(*types.Scan) error) error {
	for _, scan := range s.scans {
		if err := fn(scan); err != nil {
			return err
		}
	}
	return nil
}

func newAnalyticsRouter(scans *stubScanAnalytics) chi.Router {
	h := NewAnalyticsHandler(scans, nil)
	r := chi.NewRouter()
	r.Route("/analytics", h.RegisterRoutes)
	return r
}

func TestAnalyticsOverview(t *testing.T) {
	var gotSince time.Time
	scans := &stubScanAnalytics{
		overviewFn: func(ctx context.Context, userID string, since time.Time) (*db.Overview, error) {
			assert.Equal(t, testUserID, userID)
			gotSince = since
			return &db.Overview{
				TotalScans:   120,
				UniqueCodes:  4,
				TopCountries: []db.BucketCount{{Label: "DE", Count: 80}, {Label: "FR", Count: 40}},
			}, nil
		},
	}
	router := newAnalyticsRouter(scans)

	req := authedRequest(t, http.MethodGet, "/analytics/overview?days=7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got db.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 120, got.TotalScans)
	assert.Equal(t, 4, got.UniqueCodes)
	require.Len(t, got.TopCountries, 2)
	assert.Equal(t, "DE", got.TopCountries[0].Label)

	expected := time.Now().AddDate(0, 0, -7)
	assert.WithinDuration(t, expected, gotSince, time.Minute)
}

func TestAnalyticsOverviewRejectsBadWindow(t *testing.T) {
	router := newAnalyticsRouter(&stubScanAnalytics{
		overviewFn: func(ctx context.Context, userID string, since time.Time) (*db.Overview, error) {
			t.Fatal("store should not be queried for an invalid window")
			return nil, nil
		},
	})

	for _, days := range []string{"0", "366", "abc"} {
		req := authedRequest(t, http.MethodGet, "/analytics/overview?days="+days, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, days)
	}
}

func TestAnalyticsExportStreamsGzipNDJSON(t *testing.T) {
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	scans := &stubScanAnalytics{
		scans: []*types.Scan{
			{ID: "scan_1", QRCodeID: "qr_1", Device: "mobile", Country: "DE", ScannedAt: now},
			{ID: "scan_2", QRCodeID: "qr_1", Device: "desktop", Country: "FR", ScannedAt: now.Add(time.Hour)},
		},
	}
	router := newAnalyticsRouter(scans)

	req := authedRequest(t, http.MethodGet, "/analytics/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()

	var lines []types.Scan
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var s types.Scan
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		lines = append(lines, s)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, "scan_1", lines[0].ID)
	assert.Equal(t, "DE", lines[0].Country)
	assert.Equal(t, "scan_2", lines[1].ID)
}

func TestAnalyticsExportEmpty(t *testing.T) {
	router := newAnalyticsRouter(&stubScanAnalytics{})

	req := authedRequest(t, http.MethodGet, "/analytics/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	assert.False(t, scanner.Scan(), "no rows expected")
	require.NoError(t, scanner.Err())
}
