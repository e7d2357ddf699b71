package redis

import "strings"

// DefaultHTTPSSupportPrefix namespaces HTTPS support markers
const DefaultHTTPSSupportPrefix = "https_support:"

// HTTPSSupportKey builds the key recording that host answers over HTTPS
func HTTPSSupportKey(prefix, host string) string {
	if prefix == "" {
		prefix = DefaultHTTPSSupportPrefix
	}
	return prefix + strings.ToLower(host)
}
