// Package signature signs and verifies delivery payloads exchanged between
// the capture server and the ingestion backend.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the HTTP header carrying the signature.
const Header = "X-Memento-Signature"

// Sign returns the HMAC-SHA256 of payload in the form "sha256=<hex>".
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the signature of payload under secret.
func Verify(secret string, payload []byte, sig string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(sig))
}
