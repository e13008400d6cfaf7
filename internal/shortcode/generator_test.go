package shortcode

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neverExists(ctx context.Context, code string) (bool, error) {
	return false, nil
}

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	g := New(8)

	for range 100 {
		code := g.Generate()
		require.Len(t, code, 8)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q", c)
		}
	}
}

func TestNew_DefaultLength(t *testing.T) {
	assert.Len(t, New(0).Generate(), DefaultLength)
	assert.Len(t, New(-3).Generate(), DefaultLength)
	assert.Len(t, New(12).Generate(), 12)
}

func TestUnique_SequentialCallsDistinct(t *testing.T) {
	g := New(8)
	ctx := context.Background()

	const n = 1000
	seen := make(map[string]struct{}, n)
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		return false, nil
	}

	for range n {
		code, err := g.Unique(ctx, exists)
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}

	// In the common (no-collision) case, exactly one storage lookup per
	// request.
	assert.Equal(t, n, calls)
}

func TestUnique_RetriesOnCollision(t *testing.T) {
	g := New(8)
	ctx := context.Background()

	var drawn []string
	exists := func(ctx context.Context, code string) (bool, error) {
		drawn = append(drawn, code)
		// Force a collision on the first draw only.
		return len(drawn) == 1, nil
	}

	code, err := g.Unique(ctx, exists)
	require.NoError(t, err)
	require.Len(t, drawn, 2)
	assert.Equal(t, drawn[1], code)
	assert.NotEqual(t, drawn[0], code)
	assert.Len(t, code, 8)
}

func TestUnique_PropagatesLookupError(t *testing.T) {
	g := New(8)
	wantErr := assert.AnError

	_, err := g.Unique(context.Background(), func(ctx context.Context, code string) (bool, error) {
		return false, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestUnique_StopsOnContextCancellation(t *testing.T) {
	g := New(8)
	ctx, cancel := context.WithCancel(context.Background())

	alwaysTaken := func(ctx context.Context, code string) (bool, error) {
		cancel() // cancel during the first lookup; the loop must exit
		return true, nil
	}

	_, err := g.Unique(ctx, alwaysTaken)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWithSource_Deterministic(t *testing.T) {
	g := NewWithSource(4, func(n int) int { return 0 })
	assert.Equal(t, "AAAA", g.Generate())
}
