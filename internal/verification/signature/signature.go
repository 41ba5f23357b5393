// Package signature authenticates provider webhook deliveries.
//
// The provider signs each delivery with HMAC-SHA256 over the exact raw body
// bytes and sends the lowercase hex digest in the X-SHA2-Signature header.
// Verification must run on the bytes as received; any re-serialization of the
// body breaks the MAC.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	dErrors "idvgate/pkg/domain-errors"
)

// Header is the request header carrying the hex-encoded HMAC.
const Header = "X-SHA2-Signature"

// Verify checks providedHex against the HMAC-SHA256 of rawBody under secret.
// The comparison is constant-time. An empty signature and a mismatched one
// are distinct client errors.
func Verify(secret string, rawBody []byte, providedHex string) error {
	if strings.TrimSpace(providedHex) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "webhook signature header is missing")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(rawBody); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "computing webhook signature")
	}
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(providedHex)))) {
		return dErrors.New(dErrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}
