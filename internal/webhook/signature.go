package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC of the delivery body keyed by the app secret.
const SignatureHeader = "X-Hub-Signature-256"

// ErrBadSignature is returned when a delivery is not signed with the app secret.
var ErrBadSignature = errors.New("invalid webhook signature")

// Sign computes the header value for body.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against body using a constant-time compare.
func VerifySignature(body []byte, header, appSecret string) error {
	if !strings.HasPrefix(header, "sha256=") {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(header), []byte(Sign(body, appSecret))) {
		return ErrBadSignature
	}
	return nil
}
