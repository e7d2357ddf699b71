package fetch

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// CloneHeaders copies the inbound headers that are safe to forward
// upstream: Sec-*, Accept* and User-Agent. Accept-Encoding stays with the
// client since upstream bodies are read decoded.
func CloneHeaders(h *fasthttp.RequestHeader) map[string][]string {
	out := make(map[string][]string)
	for key, value := range h.All() {
		name := string(key)
		if forwardable(name) {
			out[name] = append(out[name], string(value))
		}
	}
	return out
}

func forwardable(name string) bool {
	lower := strings.ToLower(name)
	if lower == "accept-encoding" {
		return false
	}
	return strings.HasPrefix(lower, "sec-") ||
		strings.HasPrefix(lower, "accept") ||
		lower == "user-agent"
}
