package origin

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// AllowedOrigin returns origin when the rules permit it, otherwise "".
// The result is safe to echo in Access-Control-Allow-Origin.
func AllowedOrigin(origin string, rules RuleSet) string {
	if origin == "" || !rules.Allows(origin) {
		return ""
	}
	return origin
}

// ApplyCORS writes CORS response headers. Access-Control-Allow-Origin is
// only set for an explicitly allowed origin and is never a wildcard.
// Vary: Origin is always added.
func ApplyCORS(ctx *fasthttp.RequestCtx, origin string, rules RuleSet, methods ...string) {
	h := &ctx.Response.Header
	if allowed := AllowedOrigin(origin, rules); allowed != "" {
		h.Set(fasthttp.HeaderAccessControlAllowOrigin, allowed)
	}
	addVary(h, "Origin")
	if len(methods) > 0 {
		h.Set(fasthttp.HeaderAccessControlAllowMethods, strings.Join(methods, ", "))
	}
}

func addVary(h *fasthttp.ResponseHeader, value string) {
	current := string(h.Peek(fasthttp.HeaderVary))
	if current == "" {
		h.Set(fasthttp.HeaderVary, value)
		return
	}
	for _, v := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(v), value) {
			return
		}
	}
	h.Set(fasthttp.HeaderVary, current+", "+value)
}
