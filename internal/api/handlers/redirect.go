package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"qrstudio/internal/auth"
	"qrstudio/internal/core"
	"qrstudio/internal/types"
)

// ShortCodeResolver looks up dynamic QR codes on the redirect path.
type ShortCodeResolver interface {
	GetByShortCode(ctx context.Context, code string) (*types.QRCode, error)
	IncrementScanCount(ctx context.Context, id string) error
}

// RedirectCache fronts the resolver with a short-TTL cache.
type RedirectCache interface {
	Get(ctx context.Context, code string) (*types.QRCode, bool)
	Set(ctx context.Context, q *types.QRCode)
}

// ScanRecorder appends scan events.
type ScanRecorder interface {
	Insert(ctx context.Context, s *types.Scan) error
}

// VerifyPasswordRequest is the request body for POST /r/{code}/verify.
type VerifyPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// RedirectHandler serves the public short-link surface. It is mounted
// outside the authenticated /v1 tree; scanners are anonymous.
type RedirectHandler struct {
	resolver  ShortCodeResolver
	cache     RedirectCache
	scans     ScanRecorder
	hasher    auth.PasswordHasher
	validator *core.Validator
	logger    *slog.Logger

	// scanTimeout bounds the detached scan insert.
	scanTimeout time.Duration
}

// NewRedirectHandler creates a RedirectHandler with the provided
// dependencies. cache may be nil-backed but must not be a nil interface.
func NewRedirectHandler(
	resolver ShortCodeResolver,
	cache RedirectCache,
	scans ScanRecorder,
	hasher auth.PasswordHasher,
	validator *core.Validator,
	logger *slog.Logger,
) *RedirectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedirectHandler{
		resolver:    resolver,
		cache:       cache,
		scans:       scans,
		hasher:      hasher,
		validator:   validator,
		logger:      logger,
		scanTimeout: 5 * time.Second,
	}
}

// RegisterRoutes mounts the public redirect routes onto the provided router.
func (h *RedirectHandler) RegisterRoutes(r chi.Router) {
	r.Get("/r/{code}", h.Redirect)
	r.Post("/r/{code}/verify", h.Verify)
}

// Redirect handles GET /r/{code}: resolve, gate on expiry and password,
// record the scan, and send the scanner on with a 302.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	qr, err := h.resolve(r.Context(), code)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if qr.IsExpired(time.Now()) {
		core.Error(w, r, types.NewAppError(types.ErrCodeExpiredQRCode, "This QR code has expired", nil))
		return
	}
	if qr.HasPassword {
		core.Error(w, r, types.NewAppError(types.ErrCodePasswordRequired, "Password required", nil))
		return
	}

	h.recordScan(r, qr)
	http.Redirect(w, r, qr.Destination, http.StatusFound)
}

// Verify handles POST /r/{code}/verify for password-protected codes. The
// destination is returned in the body rather than a redirect so the
// scanning page can navigate after a successful challenge.
func (h *RedirectHandler) Verify(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req VerifyPasswordRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	qr, err := h.resolve(r.Context(), code)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if qr.IsExpired(time.Now()) {
		core.Error(w, r, types.NewAppError(types.ErrCodeExpiredQRCode, "This QR code has expired", nil))
		return
	}
	if !qr.HasPassword {
		// No challenge to pass; behave like the plain redirect path.
		h.recordScan(r, qr)
		core.JSON(w, r, http.StatusOK, map[string]string{"destination": qr.Destination})
		return
	}

	if err := auth.VerifyViewerPassword(h.hasher, qr.PasswordHash, req.Password); err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordScan(r, qr)
	core.JSON(w, r, http.StatusOK, map[string]string{"destination": qr.Destination})
}

// resolve looks the code up in the cache first, then the database, and
// backfills the cache on a miss.
func (h *RedirectHandler) resolve(ctx context.Context, code string) (*types.QRCode, error) {
	if h.cache != nil {
		if qr, hit := h.cache.Get(ctx, code); hit {
			return qr, nil
		}
	}

	qr, err := h.resolver.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		h.cache.Set(ctx, qr)
	}
	return qr, nil
}

// recordScan appends the scan event and bumps the denormalized counter in a
// detached goroutine. The scanner's redirect never waits on bookkeeping.
func (h *RedirectHandler) recordScan(r *http.Request, qr *types.QRCode) {
	scan := &types.Scan{
		ID:        "scan_" + uuid.New().String(),
		QRCodeID:  qr.ID,
		Device:    deviceFromUserAgent(r.UserAgent()),
		Browser:   browserFromUserAgent(r.UserAgent()),
		OS:        osFromUserAgent(r.UserAgent()),
		Country:   countryFromRequest(r),
		Referer:   r.Referer(),
		ScannedAt: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.scanTimeout)
		defer cancel()

		if err := h.scans.Insert(ctx, scan); err != nil {
			h.logger.Warn("failed to record scan", "qr_code_id", qr.ID, "error", err)
			return
		}
		if err := h.resolver.IncrementScanCount(ctx, qr.ID); err != nil {
			h.logger.Warn("failed to increment scan count", "qr_code_id", qr.ID, "error", err)
		}
	}()
}

// countryFromRequest reads the edge-provided geo header. Empty when the
// deployment has no geo-aware proxy in front.
func countryFromRequest(r *http.Request) string {
	if c := r.Header.Get("CF-IPCountry"); c != "" && c != "XX" {
		return c
	}
	return r.Header.Get("X-Geo-Country")
}

// The user agent sniffing below is coarse on purpose: analytics needs
// buckets, not full UA parsing.

func deviceFromUserAgent(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	case ua == "":
		return ""
	default:
		return "desktop"
	}
}

func browserFromUserAgent(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return "Edge"
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Chrome/"):
		return "Chrome"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	default:
		return ""
	}
}

func osFromUserAgent(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return ""
	}
}
