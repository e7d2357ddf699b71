package hash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// URL returns the 16 hex digit xxhash64 of a URL string, or "" for an empty URL
func URL(u string) string {
	if u == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(u))
}
