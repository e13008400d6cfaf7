package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"qrstudio/internal/types"
)

// APIKeyPrefix marks tokens issued as long-lived API keys rather than
// session JWTs. The middleware branches on it before any parsing.
const APIKeyPrefix = "qrs_"

// apiKeyPrefixLen is the number of characters (including "qrs_") stored
// in plaintext for display and lookup. The remainder is bcrypt-hashed.
const apiKeyPrefixLen = 12

// secretBytes is the entropy of the random portion of an API key.
// 32 bytes encode to 43 base64url characters.
const secretBytes = 32

// UserStore is the user lookup surface the authenticator needs. The plan
// is re-read on every request so a tier change takes effect immediately.
type UserStore interface {
	GetPlan(ctx context.Context, userID string) (types.PlanTier, error)
}

// APIKeyStore resolves API keys by their stored plaintext prefix.
type APIKeyStore interface {
	GetByPrefix(ctx context.Context, prefix string) (*types.APIKey, error)
	TouchLastUsed(ctx context.Context, keyID string) error
}

// Service authenticates bearer tokens into a request Actor. It handles
// both HS256 session JWTs and qrs_ API keys.
type Service struct {
	jwtSecret []byte
	users     UserStore
	keys      APIKeyStore
	hasher    PasswordHasher
	logger    *slog.Logger
}

// NewService creates an authenticator. All dependencies are required.
func NewService(jwtSecret string, users UserStore, keys APIKeyStore, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	if users == nil {
		return nil, fmt.Errorf("auth: user store is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("auth: api key store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("auth: password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jwtSecret: []byte(jwtSecret),
		users:     users,
		keys:      keys,
		hasher:    hasher,
		logger:    logger,
	}, nil
}

// Authenticate resolves a bearer token to an Actor. API keys are detected
// by prefix; everything else is treated as a session JWT.
func (s *Service) Authenticate(ctx context.Context, token string) (types.Actor, error) {
	if types.IsAPIKeyToken(token) {
		return s.authenticateAPIKey(ctx, token)
	}
	return s.authenticateJWT(ctx, token)
}

func (s *Service) authenticateJWT(ctx context.Context, token string) (types.Actor, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenExpired, "Token expired", err)
		}
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid token", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid token", nil)
	}
	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid token", err)
	}

	// The plan claim in the token may be stale; the database is the
	// source of truth for quota decisions.
	plan, err := s.users.GetPlan(ctx, userID)
	if err != nil {
		return types.Actor{}, err
	}

	return types.Actor{
		UserID: userID,
		Type:   types.ActorTypeUser,
		Plan:   plan,
	}, nil
}

func (s *Service) authenticateAPIKey(ctx context.Context, token string) (types.Actor, error) {
	if len(token) <= apiKeyPrefixLen {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid API key", nil)
	}

	key, err := s.keys.GetByPrefix(ctx, token[:apiKeyPrefixLen])
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeNotFoundAPIKey {
			return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid API key", nil)
		}
		return types.Actor{}, err
	}
	if key.RevokedAt != nil {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthKeyRevoked, "API key has been revoked", nil)
	}
	if err := s.hasher.CompareHashAndPassword(key.SecretHash, token); err != nil {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid API key", nil)
	}

	plan, err := s.users.GetPlan(ctx, key.UserID)
	if err != nil {
		return types.Actor{}, err
	}

	// Best effort; a failed timestamp update must not fail the request.
	if err := s.keys.TouchLastUsed(ctx, key.ID); err != nil {
		s.logger.Warn("failed to update api key last_used_at",
			"key_id", key.ID,
			"error", err,
		)
	}

	return types.Actor{
		UserID: key.UserID,
		Type:   types.ActorTypeAPIKey,
		Plan:   plan,
		KeyID:  key.ID,
	}, nil
}

// GenerateAPIKey produces a new API key secret and its stored form.
// The full secret is shown to the caller exactly once; only the bcrypt
// hash and the display prefix persist.
func GenerateAPIKey(hasher PasswordHasher) (secret, prefix, secretHash string, err error) {
	raw := make([]byte, secretBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate api key", err)
	}
	secret = APIKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	prefix = secret[:apiKeyPrefixLen]
	secretHash, err = hasher.GenerateFromPassword(secret)
	if err != nil {
		return "", "", "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash api key", err)
	}
	return secret, prefix, secretHash, nil
}
