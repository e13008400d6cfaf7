package webhook

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignPayload_Format(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	header := SignPayload([]byte(`{"id":"evt_1"}`), "whsec_test", now)

	require.True(t, strings.HasPrefix(header, "t=1785585600,v1="))
	parts := strings.SplitN(header, ",", 2)
	require.Len(t, parts, 2)
	// HMAC-SHA256 hex digest is 64 characters.
	assert.Len(t, strings.TrimPrefix(parts[1], "v1="), 64)
}

func TestSignPayload_Deterministic(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := SignPayload([]byte("payload"), "secret", now)
	b := SignPayload([]byte("payload"), "secret", now)
	assert.Equal(t, a, b)
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"type":"qr_code.created"}`)
	header := SignPayload(payload, "whsec_test", time.Now())

	assert.True(t, VerifySignature(payload, header, "whsec_test"))
	assert.False(t, VerifySignature(payload, header, "wrong-secret"))
	assert.False(t, VerifySignature([]byte("tampered"), header, "whsec_test"))
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	assert.False(t, VerifySignature([]byte("x"), "", "secret"))
	assert.False(t, VerifySignature([]byte("x"), "t=123", "secret"))
	assert.False(t, VerifySignature([]byte("x"), "garbage", "secret"))
}
