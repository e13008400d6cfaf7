// Package webhook implements best-effort event delivery to user-registered
// endpoints. Events are queued in memory, signed with HMAC-SHA256, and
// POSTed by a small worker pool behind a circuit breaker. Delivery is
// at-most-once: a request that produced an event never waits on it.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the delivery signature.
const SignatureHeader = "X-QRStudio-Signature"

// SignPayload generates the signature header value for a webhook payload.
// The signed content is "{unix_timestamp}.{payload}" using HMAC-SHA256 with
// the subscription's secret. Header format: "t=<unix>,v1=<hex>".
func SignPayload(payload []byte, secret string, now time.Time) string {
	timestamp := now.Unix()
	signedContent := fmt.Sprintf("%d.%s", timestamp, string(payload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, computeHMAC(signedContent, secret))
}

// VerifySignature checks a payload against a signature header. Receivers can
// use this to authenticate deliveries.
func VerifySignature(payload []byte, header, secret string) bool {
	var timestamp, v1 string
	for _, segment := range strings.Split(header, ",") {
		kv := strings.SplitN(segment, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "t":
			timestamp = strings.TrimSpace(kv[1])
		case "v1":
			v1 = strings.TrimSpace(kv[1])
		}
	}
	if timestamp == "" || v1 == "" {
		return false
	}

	signedContent := fmt.Sprintf("%s.%s", timestamp, string(payload))
	expected := computeHMAC(signedContent, secret)
	return hmac.Equal([]byte(v1), []byte(expected))
}

// computeHMAC computes the HMAC-SHA256 of content using the given key
// and returns it as a lowercase hex string.
func computeHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
