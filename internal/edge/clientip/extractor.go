package clientip

import (
	"net"
	"net/netip"
	"strings"

	"github.com/valyala/fasthttp"
)

// DefaultHeaders are consulted when no header list is configured
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Extract returns the client address from the first configured header that
// holds one, otherwise from the connection. Only the first entry of a list
// valued header (X-Forwarded-For) is used.
func Extract(ctx *fasthttp.RequestCtx, headers []string) string {
	for _, header := range headers {
		value := string(ctx.Request.Header.Peek(header))
		first, _, _ := strings.Cut(value, ",")
		if ip := normalize(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}
	return fromRemoteAddr(ctx.RemoteAddr())
}

func fromRemoteAddr(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if ap, err := netip.ParseAddrPort(addr.String()); err == nil {
		return ap.Addr().Unmap().WithZone("").String()
	}
	return normalize(addr.String())
}

// normalize canonicalizes an IP literal. Non-IP values are returned trimmed
// of brackets so that odd proxies still show up in logs.
func normalize(raw string) string {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if raw == "" {
		return ""
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw
	}
	return addr.Unmap().WithZone("").String()
}
