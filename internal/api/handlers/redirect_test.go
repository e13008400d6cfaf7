package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"qrstudio/internal/auth"
	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

type stubResolver struct {
	getFn func(ctx context.Context, code string) (*types.QRCode, error)

	mu          sync.Mutex
	incremented []string
}

func (s *stubResolver) GetByShortCode(ctx context.Context, code string) (*types.QRCode, error) {
	return s.getFn(ctx, code)
}

func (s *stubResolver) IncrementScanCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incremented = append(s.incremented, id)
	return nil
}

type stubRedirectCache struct {
	mu      sync.Mutex
	entries map[string]*types.QRCode
	hits    int
	sets    int
}

func newStubRedirectCache() *stubRedirectCache {
	return &stubRedirectCache{entries: map[string]*types.QRCode{}}
}

func (s *stubRedirectCache) Get(ctx context.Context, code string) (*types.QRCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qr, ok := s.entries[code]
	if ok {
		s.hits++
	}
	return qr, ok
}

func (s *stubRedirectCache) Set(ctx context.Context, q *types.QRCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[q.ShortCode] = q
	s.sets++
}

type stubScanRecorder struct {
	scans chan *types.Scan
}

func newStubScanRecorder() *stubScanRecorder {
	return &stubScanRecorder{scans: make(chan *types.Scan, 8)}
}

func (s *stubScanRecorder) Insert(ctx context.Context, scan *types.Scan) error {
	s.scans <- scan
	return nil
}

func (s *stubScanRecorder) waitForScan(t *testing.T) *types.Scan {
	t.Helper()
	select {
	case scan := <-s.scans:
		return scan
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan to be recorded")
		return nil
	}
}

type redirectFixture struct {
	resolver *stubResolver
	cache    *stubRedirectCache
	scans    *stubScanRecorder
	router   chi.Router
}

func newRedirectFixture() *redirectFixture {
	f := &redirectFixture{
		resolver: &stubResolver{},
		cache:    newStubRedirectCache(),
		scans:    newStubScanRecorder(),
	}
	h := NewRedirectHandler(
		f.resolver,
		f.cache,
		f.scans,
		auth.NewBcryptHasher(bcrypt.MinCost),
		core.NewValidator(nil),
		nil,
	)
	f.router = chi.NewRouter()
	h.RegisterRoutes(f.router)
	return f
}

func dynamicQRCode() *types.QRCode {
	return &types.QRCode{
		ID:          "qr_1",
		UserID:      testUserID,
		Type:        types.QRTypeDynamic,
		Content:     "https://example.com/menu",
		Destination: "https://example.com/menu",
		ShortCode:   "Ab3dEf9h",
	}
}

func TestRedirectFollowsDestination(t *testing.T) {
	f := newRedirectFixture()
	qr := dynamicQRCode()
	f.resolver.getFn = func(ctx context.Context, code string) (*types.QRCode, error) {
		assert.Equal(t, "Ab3dEf9h", code)
		return qr, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/r/Ab3dEf9h", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1")
	req.Header.Set("CF-IPCountry", "DE")
	req.Header.Set("Referer", "https://instagram.com/")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/menu", rec.Header().Get("Location"))

	scan := f.scans.waitForScan(t)
	assert.Equal(t, "qr_1", scan.QRCodeID)
	assert.True(t, strings.HasPrefix(scan.ID, "scan_"))
	assert.Equal(t, "mobile", scan.Device)
	assert.Equal(t, "Safari", scan.Browser)
	assert.Equal(t, "iOS", scan.OS)
	assert.Equal(t, "DE", scan.Country)
	assert.Equal(t, "https://instagram.com/", scan.Referer)
}

func TestRedirectBackfillsCache(t *testing.T) {
	f := newRedirectFixture()
	qr := dynamicQRCode()
	calls := 0
	f.resolver.getFn = func(ctx context.Context, code string) (*types.QRCode, error) {
		calls++
		return qr, nil
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/r/Ab3dEf9h", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusFound, rec.Code)
	}

	assert.Equal(t, 1, calls, "second lookup should come from cache")
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 1, f.cache.sets)
}

func TestRedirectUnknownCode(t *testing.T) {
	f := newRedirectFixture()
	f.resolver.getFn = func(ctx context.Context, code string) (*types.QRCode, error) {
		return nil, types.NewAppError(types.ErrCodeNotFoundShortCode, "Short link not found", nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/r/missing99", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedirectExpiredCode(t *testing.T) {
	f := newRedirectFixture()
	qr := dynamicQRCode()
	past := time.Now().Add(-time.Hour)
	qr.ExpiresAt = &past
	f.resolver.getFn = func(ctx context.Context, code string) (*types.QRCode, error) {
		return qr, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/r/Ab3dEf9h", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Empty(t, f.scans.scans, "expired scans are not recorded")
}

func TestRedirectPasswordProtected(t *testing.T) {
	f := newRedirectFixture()
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	qr := dynamicQRCode()
	qr.PasswordHash = string(hash)
	qr.HasPassword = true
	f.resolver.getFn = func(ctx context.Context, code string) (*types.QRCode, error) {
		return qr, nil
	}

	// The plain redirect answers with the password challenge.
	req := httptest.NewRequest(http.MethodGet, "/r/Ab3dEf9h", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.scans.scans)

	// Wrong password is rejected.
	req = httptest.NewRequest(http.MethodPost, "/r/Ab3dEf9h/verify", strings.NewReader(`{"password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.scans.scans)

	// Correct password yields the destination and records the scan.
	req = httptest.NewRequest(http.MethodPost, "/r/Ab3dEf9h/verify", strings.NewReader(`{"password":"letmein"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://example.com/menu")

	scan := f.scans.waitForScan(t)
	assert.Equal(t, "qr_1", scan.QRCodeID)
}

func TestRedirectVerifyRequiresPasswordField(t *testing.T) {
	f := newRedirectFixture()
	f.resolver.getFn = func(ctx context.Context, code string) (*types.QRCode, error) {
		return dynamicQRCode(), nil
	}

	req := httptest.NewRequest(http.MethodPost, "/r/Ab3dEf9h/verify", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserAgentBuckets(t *testing.T) {
	cases := []struct {
		ua      string
		device  string
		browser string
		os      string
	}{
		{
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0.0.0 Safari/537.36",
			device:  "desktop",
			browser: "Chrome",
			os:      "Windows",
		},
		{
			ua:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/126.0.0.0 Mobile Safari/537.36",
			device:  "mobile",
			browser: "Chrome",
			os:      "Android",
		},
		{
			ua:      "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Version/17.0 Safari/604.1",
			device:  "tablet",
			browser: "Safari",
			os:      "iOS",
		},
		{
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) Gecko/20100101 Firefox/127.0",
			device:  "desktop",
			browser: "Firefox",
			os:      "macOS",
		},
		{ua: "", device: "", browser: "", os: ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.device, deviceFromUserAgent(tc.ua), tc.ua)
		assert.Equal(t, tc.browser, browserFromUserAgent(tc.ua), tc.ua)
		assert.Equal(t, tc.os, osFromUserAgent(tc.ua), tc.ua)
	}
}
