package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries an HMAC-SHA256 of the request body.
const SignatureHeader = "X-Taskd-Signature"

var errBadSignature = errors.New("signature verification failed")

// VerifySignature checks an HMAC-SHA256 signature of body. Both "sha256=<hex>"
// (GitHub style) and bare hex are accepted. Every failure yields the same
// error.
func VerifySignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errBadSignature
	}

	actual, err := parseSignature(signature)
	if err != nil {
		return errBadSignature
	}
	if subtle.ConstantTimeCompare(computeSignature(body, secret), actual) != 1 {
		return errBadSignature
	}
	return nil
}

// Sign returns the "sha256=<hex>" signature of body.
func Sign(body []byte, secret string) string {
	return "sha256=" + hex.EncodeToString(computeSignature(body, secret))
}

func computeSignature(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func parseSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
}
