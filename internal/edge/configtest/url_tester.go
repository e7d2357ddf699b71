package configtest

import (
	"fmt"
	"net/url"

	"github.com/valyala/fasthttp"

	"github.com/toeverything/edge-workers/internal/common/config"
	"github.com/toeverything/edge-workers/internal/common/urlutil"
	"github.com/toeverything/edge-workers/internal/edge/hash"
	"github.com/toeverything/edge-workers/internal/edge/origin"
	"github.com/toeverything/edge-workers/internal/edge/router"
	"github.com/toeverything/edge-workers/internal/edge/validate"
)

// URLTestResult contains the result of URL testing
type URLTestResult struct {
	URL        string
	IsAbsolute bool
	Canonical  canonicalResult
	Origin     originResult
	Routes     []RouteMatch
}

type canonicalResult struct {
	Valid bool
	URL   string
	Hash  string
}

type originResult struct {
	Origin  string
	Allowed bool
}

// RouteMatch is the route a host and path resolve to
type RouteMatch struct {
	Host    string
	Path    string
	Matched bool
	Route   config.RouteConfig
}

// routeHandler marks a table entry with the route that registered it
type routeHandler struct {
	route config.RouteConfig
}

func (routeHandler) Serve(*fasthttp.RequestCtx) error { return nil }

// TestURL reports how the worker would treat testURL: which route serves
// it, what the canonicalizer makes of it, and whether its origin passes the
// configured origin rules. A relative URL is checked against every host.
func TestURL(testURL string, result *validate.ValidationResult) (*URLTestResult, error) {
	if result == nil || result.Config == nil {
		return nil, fmt.Errorf("configuration is not valid")
	}
	return testURLWithConfig(testURL, result.Config)
}

func testURLWithConfig(testURL string, cfg *config.WorkerConfig) (*URLTestResult, error) {
	parsedURL, err := url.Parse(testURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	rules, err := origin.ParseRules(cfg.Origins.Allow)
	if err != nil {
		return nil, fmt.Errorf("invalid origin rules: %w", err)
	}

	out := &URLTestResult{
		URL:        testURL,
		IsAbsolute: parsedURL.Scheme != "" && parsedURL.Host != "",
	}

	if canonical, ok := urlutil.Canonicalize(testURL); ok {
		s := canonical.String()
		out.Canonical = canonicalResult{Valid: true, URL: s, Hash: hash.URL(s)}
	}

	if o, ok := urlutil.Origin(testURL); ok {
		out.Origin = originResult{Origin: o, Allowed: rules.Allows(o)}
	}

	table := buildTable(cfg.Routes)
	path := parsedURL.EscapedPath()
	if path == "" {
		path = "/"
	}

	if out.IsAbsolute {
		out.Routes = []RouteMatch{lookup(table, parsedURL.Host, path)}
		return out, nil
	}

	for _, host := range table.Hosts() {
		out.Routes = append(out.Routes, lookup(table, host, path))
	}
	return out, nil
}

func buildTable(routes []config.RouteConfig) *router.Table {
	b := router.NewBuilder()
	for _, r := range routes {
		b.Add(r.Host, r.Prefix, routeHandler{route: r})
	}
	return b.Build()
}

func lookup(table *router.Table, host, path string) RouteMatch {
	match := RouteMatch{Host: urlutil.ExtractHostname(host), Path: path}
	h, ok := table.Lookup(host, path)
	if !ok {
		return match
	}
	if rh, isRoute := h.(routeHandler); isRoute {
		match.Matched = true
		match.Route = rh.route
	}
	return match
}
