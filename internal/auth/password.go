package auth

import (
	"golang.org/x/crypto/bcrypt"

	"qrstudio/internal/types"
)

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// bcryptHasher is the production implementation of PasswordHasher.
type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a PasswordHasher with the given bcrypt cost.
// A cost below bcrypt.MinCost falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b *bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// HashViewerPassword hashes a QR code viewer password for storage.
func HashViewerPassword(hasher PasswordHasher, password string) (string, error) {
	hash, err := hasher.GenerateFromPassword(password)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}
	return hash, nil
}

// VerifyViewerPassword checks a supplied password against a stored viewer
// password hash. Returns an auth error on mismatch rather than the raw
// bcrypt error so handlers can map it to a 401.
func VerifyViewerPassword(hasher PasswordHasher, storedHash, password string) error {
	if err := hasher.CompareHashAndPassword(storedHash, password); err != nil {
		return types.NewAppError(types.ErrCodePasswordIncorrect, "Incorrect password", nil)
	}
	return nil
}
