// Package signature verifies the authenticity of inbound Slack webhook
// requests. Verification operates on the exact raw request bytes; callers
// must read the body once and hand the same slice to both Verify and the
// downstream JSON decoder.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader and TimestampHeader are the Slack-supplied request headers.
	SignatureHeader = "X-Slack-Signature"
	TimestampHeader = "X-Slack-Request-Timestamp"

	// MaxClockSkew is the replay window: requests whose timestamp differs
	// from server time by more than this are rejected.
	MaxClockSkew = 300 * time.Second

	versionPrefix = "v0"
)

var (
	ErrUnauthorized = errors.New("signature: unauthorized")
	ErrExpired      = errors.New("signature: request timestamp expired")
)

// Verify checks the v0 HMAC-SHA256 signature over the raw request body.
// An empty secret disables verification entirely (open mode).
func Verify(secret string, body []byte, sigHeader, tsHeader string, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	sigHeader = strings.TrimSpace(sigHeader)
	tsHeader = strings.TrimSpace(tsHeader)
	if sigHeader == "" || tsHeader == "" {
		return ErrUnauthorized
	}
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return ErrUnauthorized
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > MaxClockSkew {
		return ErrExpired
	}
	if !hmac.Equal([]byte(Compute(secret, tsHeader, body)), []byte(sigHeader)) {
		return ErrUnauthorized
	}
	return nil
}

// Compute returns the expected signature string for the given secret,
// timestamp header value, and raw body.
func Compute(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(versionPrefix + ":" + timestamp + ":"))
	mac.Write(body)
	return versionPrefix + "=" + hex.EncodeToString(mac.Sum(nil))
}
