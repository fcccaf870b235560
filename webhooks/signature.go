package webhooks

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries Trello's delivery signature.
const SignatureHeader = "X-Trello-Webhook"

var ErrSignatureMismatch = errors.New("webhooks: signature verification failed")

// SignatureVerifier checks Trello's X-Trello-Webhook header, a base64
// HMAC-SHA1 of the raw body followed by the registered callback URL, keyed
// by the application secret.
type SignatureVerifier struct {
	Secret      string
	CallbackURL string
}

// NewSignatureVerifier returns nil when either the secret or the callback
// URL is empty, which leaves deliveries unverified.
func NewSignatureVerifier(secret, callbackURL string) *SignatureVerifier {
	secret = strings.TrimSpace(secret)
	callbackURL = strings.TrimSpace(callbackURL)
	if secret == "" || callbackURL == "" {
		return nil
	}
	return &SignatureVerifier{Secret: secret, CallbackURL: callbackURL}
}

func (v *SignatureVerifier) Verify(body []byte, header string) error {
	if v == nil {
		return nil
	}
	signature := strings.TrimSpace(header)
	if signature == "" {
		return fmt.Errorf("%w: %s header is required", ErrSignatureMismatch, SignatureHeader)
	}
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: decode base64 signature: %v", ErrSignatureMismatch, err)
	}
	if subtle.ConstantTimeCompare(decoded, v.expected(body)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign returns the header value Trello would send for body.
func (v *SignatureVerifier) Sign(body []byte) string {
	if v == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(v.expected(body))
}

func (v *SignatureVerifier) expected(body []byte) []byte {
	mac := hmac.New(sha1.New, []byte(v.Secret))
	_, _ = mac.Write(body)
	_, _ = mac.Write([]byte(v.CallbackURL))
	return mac.Sum(nil)
}
