// Package shortcode generates the unique routing tokens for dynamic QR
// redirects.
package shortcode

import (
	"context"
	"math/rand/v2"

	"qrstudio/internal/types"
)

// Alphabet is the character set short codes are drawn from. 62^8 provides a
// large enough space that collisions are negligible at the default length.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is the standard short-code length.
const DefaultLength = 8

// ExistsFunc reports whether a candidate code is already taken in storage.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces random fixed-length alphanumeric tokens.
//
// Codes are routing keys, not secrets: the source is math/rand, which is
// neither unbiased nor unpredictable, and the codes must not be relied on
// to resist enumeration. Uniqueness against concurrent writers is
// ultimately backstopped by the storage layer's unique constraint, not by
// the retry loop here.
type Generator struct {
	length int
	intN   func(n int) int
}

// New creates a Generator producing codes of the given length.
// Lengths below 1 fall back to DefaultLength.
func New(length int) *Generator {
	if length < 1 {
		length = DefaultLength
	}
	return &Generator{length: length, intN: rand.IntN}
}

// NewWithSource creates a Generator with a caller-supplied random index
// function. Used by tests to force collisions deterministically.
func NewWithSource(length int, intN func(n int) int) *Generator {
	g := New(length)
	if intN != nil {
		g.intN = intN
	}
	return g
}

// Generate returns one random code. It does not consult storage.
func (g *Generator) Generate() string {
	b := make([]byte, g.length)
	for i := range b {
		b[i] = Alphabet[g.intN(len(Alphabet))]
	}
	return string(b)
}

// Unique draws codes until exists reports a free one. There is no attempt
// cap: at this alphabet and length the space cannot realistically exhaust,
// and the loop is bounded by the request context's deadline instead.
func (g *Generator) Unique(ctx context.Context, exists ExistsFunc) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"short code generation cancelled",
				err,
			)
		}

		code := g.Generate()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
}
