package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/jwambugu/smobilpay-golang-sdk"
)

const (
	// HeaderWebhookSignature carries a base64 HMAC-SHA256 of the body.
	HeaderWebhookSignature = "X-WC-Webhook-Signature"
	// HeaderSignature carries a hex HMAC-SHA1 of the body.
	HeaderSignature = "X-Signature"
)

// Signature is the signature a delivery was sent with.
type Signature interface {
	// Verify reports whether the signature matches the HMAC of body computed with secret.
	Verify(secret string, body []byte) bool
}

type (
	// HMACSHA256Base64 is sent in the X-WC-Webhook-Signature header.
	HMACSHA256Base64 string

	// HMACSHA1Hex is sent in the X-Signature header.
	HMACSHA1Hex string
)

func (s HMACSHA256Base64) Verify(secret string, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(s))
}

func (s HMACSHA1Hex) Verify(secret string, body []byte) bool {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)

	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(s))
}

// SignatureFromHeader returns the signature of a delivery. X-WC-Webhook-Signature takes precedence when both
// headers are present.
func SignatureFromHeader(h http.Header) (Signature, bool) {
	if v := h.Values(HeaderWebhookSignature); len(v) > 0 {
		return HMACSHA256Base64(v[0]), true
	}

	if v := h.Values(HeaderSignature); len(v) > 0 {
		return HMACSHA1Hex(v[0]), true
	}

	return nil, false
}

// Authenticate verifies the signature of a delivery.
func Authenticate(h http.Header, secret string, body []byte) error {
	const op = "webhook.Authenticate"

	sig, ok := SignatureFromHeader(h)
	if !ok {
		return smobilpay.NewError(smobilpay.KindWebhookAuth, op, "missing signature")
	}

	if !sig.Verify(secret, body) {
		return smobilpay.NewError(smobilpay.KindWebhookAuth, op, "invalid signature")
	}

	return nil
}
