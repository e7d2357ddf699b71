package probe

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/toeverything/edge-workers/internal/common/urlutil"
)

// ProxyBuilder produces client-facing URLs for extracted resources.
// After scheme resolution, https URLs are returned directly and http ones
// are routed through the proxy endpoint of the worker that handled the request.
type ProxyBuilder struct {
	prober   *Prober
	endpoint string
}

// NewProxyBuilder derives the proxy endpoint from the inbound request URL.
// If requestURL has no usable origin the builder returns URLs unchanged.
func NewProxyBuilder(requestURL, proxyPath string, prober *Prober) *ProxyBuilder {
	b := &ProxyBuilder{prober: prober}
	if o, ok := urlutil.Origin(requestURL); ok {
		if !strings.HasPrefix(proxyPath, "/") {
			proxyPath = "/" + proxyPath
		}
		b.endpoint = o + proxyPath
	}
	return b
}

// Build resolves u and returns the URL a client should load
func (b *ProxyBuilder) Build(ctx context.Context, u *url.URL) string {
	if u == nil {
		return ""
	}
	if b.endpoint == "" {
		return u.String()
	}
	resolved := b.prober.ResolveScheme(ctx, u)
	if resolved.Scheme != "http" {
		return resolved.String()
	}
	return b.ProxyURL(resolved.String())
}

// ProxyURL wraps target in the proxy endpoint.
// It is pure: no scheme resolution happens here.
func (b *ProxyBuilder) ProxyURL(target string) string {
	if b.endpoint == "" {
		return target
	}
	return b.endpoint + "?url=" + url.QueryEscape(target)
}

// ResolveAll builds every URL concurrently, keeping input order.
// Entries that do not parse are kept unchanged.
func (b *ProxyBuilder) ResolveAll(ctx context.Context, urls []string) []string {
	return fanOut(urls, func(u *url.URL) string { return b.Build(ctx, u) })
}

// fanOut applies fn to every absolute URL in its own goroutine and waits
// for all of them
func fanOut(urls []string, fn func(*url.URL) string) []string {
	out := make([]string, len(urls))
	var wg sync.WaitGroup

	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			out[i] = raw
			continue
		}

		wg.Add(1)
		go func(i int, u *url.URL) {
			defer wg.Done()
			out[i] = fn(u)
		}(i, u)
	}

	wg.Wait()
	return out
}
