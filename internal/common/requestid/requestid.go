package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	HeaderName = "X-Request-ID"

	// MaxRequestIDLength matches the length of a UUID string
	MaxRequestIDLength = 36
	PrefixLength       = 5
	MaxCustomIDLength  = MaxRequestIDLength - PrefixLength - 1
)

// FromRequest derives the request ID for an inbound request from its
// X-Request-ID header, or generates a fresh one.
func FromRequest(ctx *fasthttp.RequestCtx) string {
	return Generate(string(ctx.Request.Header.Peek(HeaderName)))
}

// Generate returns "{5 hex chars}-{sanitized customID}". Only [a-zA-Z0-9-]
// survive sanitization, spaces become hyphens and hyphen runs collapse.
// An empty result falls back to a random UUID.
func Generate(customID string) string {
	sanitized := sanitize(customID)
	if sanitized == "" {
		return uuid.New().String()
	}
	if len(sanitized) > MaxCustomIDLength {
		sanitized = strings.TrimRight(sanitized[:MaxCustomIDLength], "-")
	}
	return randomPrefix() + "-" + sanitized
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastHyphen := true // drops leading hyphens
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
			lastHyphen = false
		case c == '-' || c == ' ':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func randomPrefix() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()[:PrefixLength]
	}
	return hex.EncodeToString(buf)[:PrefixLength]
}
