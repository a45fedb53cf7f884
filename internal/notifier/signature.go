package notifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Headers Textbelt signs reply webhooks with.
const (
	SignatureHeader = "X-textbelt-signature"
	TimestampHeader = "X-textbelt-timestamp"
)

// ReplyMaxAge is how far a reply timestamp may drift from now in either direction.
const ReplyMaxAge = 15 * time.Minute

var (
	ErrMissingSignature = errors.New("missing textbelt signature")
	ErrInvalidSignature = errors.New("invalid textbelt signature")
	ErrStaleTimestamp   = errors.New("stale textbelt timestamp")
)

// SignReply returns the hex HMAC-SHA256 of timestamp followed by body, keyed with the
// Textbelt API key.
func SignReply(key, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyReply checks a reply webhook's signature and timestamp.
func VerifyReply(key, signature, timestamp string, body []byte, now time.Time) error {
	if key == "" || signature == "" || timestamp == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	requestTime := time.Unix(ts, 0)
	if now.Sub(requestTime) > ReplyMaxAge || requestTime.Sub(now) > ReplyMaxAge {
		return ErrStaleTimestamp
	}

	expected := SignReply(key, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
