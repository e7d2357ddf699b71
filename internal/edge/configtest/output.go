package configtest

import (
	"fmt"
	"io"
)

// PrintURLTestResult writes URL test results in human readable form
func PrintURLTestResult(w io.Writer, result *URLTestResult) {
	fmt.Fprintf(w, "\nTesting URL: %s\n", result.URL)

	fmt.Fprintln(w)
	if result.Canonical.Valid {
		fmt.Fprintf(w, "Canonical URL: %s\n", result.Canonical.URL)
		fmt.Fprintf(w, "URL Hash: %s\n", result.Canonical.Hash)
	} else {
		fmt.Fprintln(w, "Canonical URL: (rejected)")
	}

	if result.Origin.Origin != "" {
		verdict := "denied"
		if result.Origin.Allowed {
			verdict = "allowed"
		}
		fmt.Fprintf(w, "Origin: %s (%s)\n", result.Origin.Origin, verdict)
	}

	if !result.IsAbsolute {
		fmt.Fprintf(w, "Checking across %d hosts...\n", len(result.Routes))
	}

	for _, match := range result.Routes {
		fmt.Fprintf(w, "\n=== Host: %s ===\n", match.Host)
		fmt.Fprintf(w, "Path: %s\n", match.Path)
		if !match.Matched {
			fmt.Fprintln(w, "Route: (none, 404)")
			continue
		}
		fmt.Fprintf(w, "Route: %s%s\n", match.Route.Host, match.Route.Prefix)
		fmt.Fprintf(w, "App: %s\n", match.Route.App)
	}
}
