// Package signature validates the authenticity of inbound requests: the
// provider's HMAC over webhook payloads and the broker's signed delivery
// tokens.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const providerSignaturePrefix = "sha256="

// VerifyProvider checks the provider's HMAC-SHA256 signature over the
// exact raw request body. The header carries a hex digest prefixed with
// the algorithm tag ("sha256=..."). The comparison is constant-time.
//
// Callers must pass the body bytes exactly as received: any decoding or
// re-serialization before verification invalidates the check.
func VerifyProvider(rawBody []byte, signatureHeader, appSecret string) bool {
	if signatureHeader == "" || appSecret == "" {
		return false
	}

	if !strings.HasPrefix(signatureHeader, providerSignaturePrefix) {
		return false
	}

	received, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, providerSignaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(received, expected)
}

// SignProvider computes the header value the provider would send for the
// given body. Used by tests and the local publisher loopback.
func SignProvider(rawBody []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	return providerSignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
