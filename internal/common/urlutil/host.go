package urlutil

import (
	"net/url"
	"strings"
)

// ExtractHostname removes the port from a host string ("example.com:8080").
// The input is a host, not a full URL. IPv6 literals keep their brackets
// and bare IPv6 addresses are returned untouched.
func ExtractHostname(host string) string {
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end != -1 {
			return host[:end+1]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 && strings.Count(host, ":") == 1 {
		return host[:idx]
	}
	return host
}

// WithScheme returns a copy of u using scheme
func WithScheme(u *url.URL, scheme string) *url.URL {
	out := *u
	if u.User != nil {
		user := *u.User
		out.User = &user
	}
	out.Scheme = scheme
	return &out
}

// Origin returns scheme://host[:port] for an absolute http(s) URL string.
// Default ports are elided. ok is false when raw has no usable origin.
func Origin(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	return OriginOf(u)
}

// OriginOf is Origin for an already parsed URL
func OriginOf(u *url.URL) (string, bool) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", false
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port := u.Port(); port != "" && port != defaultPort(scheme) {
		host += ":" + port
	}
	return scheme + "://" + host, true
}
