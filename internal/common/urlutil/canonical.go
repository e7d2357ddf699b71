package urlutil

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// hostProfile is the lookup profile without STD3 rules, so "_" is allowed
// in labels the way browsers allow it
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.CheckHyphens(true),
	idna.CheckJoiners(true),
	idna.StrictDomainName(false),
)

// Canonicalize turns a user supplied string into an absolute http(s) URL.
// A missing scheme defaults to http. The host must be a real registrable
// domain name: IP literals, localhost, bare public suffixes and malformed
// labels are rejected. The second result is false on any failure.
func Canonicalize(raw string) (*url.URL, bool) {
	full := raw
	if !strings.HasPrefix(raw, "http:") && !strings.HasPrefix(raw, "https:") {
		full = "http://" + raw
	}

	u, err := url.Parse(withAuthority(full))
	if err != nil || u.Host == "" || u.Opaque != "" {
		return nil, false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}

	hostname := strings.ToLower(u.Hostname())
	port := u.Port()
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n > 65535 {
			return nil, false
		}
		if defaultPort(u.Scheme) == strconv.Itoa(n) {
			port = ""
		} else {
			port = strconv.Itoa(n)
		}
	}

	if domain := registrableHost(rawHostname(raw)); domain == "" || domain != hostname {
		return nil, false
	}

	u.Host = hostname
	if port != "" {
		u.Host = net.JoinHostPort(hostname, port)
	}
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u, true
}

// CanonicalString returns the canonical form of raw, or "" when rejected
func CanonicalString(raw string) string {
	u, ok := Canonicalize(raw)
	if !ok {
		return ""
	}
	return u.String()
}

// withAuthority makes "http:example.com" and "http:/example.com" parse
// with a host, the way browsers treat special schemes.
func withAuthority(s string) string {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok {
		return s
	}
	return scheme + "://" + strings.TrimLeft(rest, `/\`)
}

// rawHostname pulls the hostname out of raw input without a URL parser:
// scheme, userinfo, port, path, query and fragment are stripped.
func rawHostname(raw string) string {
	s := raw
	if idx := strings.Index(s, "://"); idx != -1 && isScheme(s[:idx]) {
		s = s[idx+3:]
	} else if strings.HasPrefix(s, "//") {
		s = s[2:]
	} else if scheme, rest, ok := strings.Cut(s, ":"); ok && (scheme == "http" || scheme == "https") {
		s = strings.TrimLeft(rest, `/\`)
	}

	if idx := strings.IndexAny(s, `/?#\`); idx != -1 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		s = s[idx+1:]
	}
	if strings.HasPrefix(s, "[") {
		// IPv6 literal, never a registrable domain
		return ""
	}
	if idx := strings.IndexByte(s, ':'); idx != -1 {
		s = s[:idx]
	}
	return strings.ToLower(s)
}

func isScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// registrableHost returns host when it is a sub-domain of, or equal to,
// a registrable domain under the public suffix list. Otherwise "".
func registrableHost(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	for _, label := range strings.Split(host, ".") {
		if !validLabel(label) {
			return ""
		}
	}

	// rejects invalid punycode, bad hyphen placement and non-ASCII input
	ascii, err := hostProfile.ToASCII(host)
	if err != nil || ascii != host {
		return ""
	}

	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || apex == "" {
		return ""
	}
	if host != apex && !strings.HasSuffix(host, "."+apex) {
		return ""
	}
	return host
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	for _, c := range label {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}
