package probe

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProxyBuilder_Build(t *testing.T) {
	p := NewProber(NewMemoryStore(), newFakeChecker("secure.example"), zap.NewNop())
	b := NewProxyBuilder("https://worker.example.com/api/worker/link-preview?x=1", "/api/worker/image-proxy", p)
	ctx := context.Background()

	assert.Equal(t, "https://secure.example/a.png", b.Build(ctx, mustParse("http://secure.example/a.png")))
	assert.Equal(t, "https://other.example/b.png", b.Build(ctx, mustParse("https://other.example/b.png")))
	assert.Equal(t,
		"https://worker.example.com/api/worker/image-proxy?url="+url.QueryEscape("http://plain.example/c.png?s=1&t=2"),
		b.Build(ctx, mustParse("http://plain.example/c.png?s=1&t=2")))
	assert.Empty(t, b.Build(ctx, nil))
}

func TestProxyBuilder_InvalidRequestURLIsIdentity(t *testing.T) {
	checker := newFakeChecker()
	p := NewProber(NewMemoryStore(), checker, zap.NewNop())
	b := NewProxyBuilder("::not a url", "/api/worker/image-proxy", p)

	assert.Equal(t, "http://plain.example/c.png", b.Build(context.Background(), mustParse("http://plain.example/c.png")))
	assert.Empty(t, checker.Calls())
	assert.Equal(t, "x", b.ProxyURL("x"))
}

func TestProxyBuilder_PathWithoutSlash(t *testing.T) {
	b := NewProxyBuilder("http://localhost:8080/", "proxy", nil)
	assert.Equal(t, "http://localhost:8080/proxy?url=u", b.ProxyURL("u"))
}

func TestProxyBuilder_ResolveAll(t *testing.T) {
	p := NewProber(NewMemoryStore(), newFakeChecker("secure.example"), zap.NewNop())
	b := NewProxyBuilder("http://localhost:8080/api/worker/link-preview", "/api/worker/image-proxy", p)

	got := b.ResolveAll(context.Background(), []string{
		"http://plain.example/1.png",
		"http://secure.example/2.png",
		"/relative.png",
	})
	assert.Equal(t, []string{
		"http://localhost:8080/api/worker/image-proxy?url=" + url.QueryEscape("http://plain.example/1.png"),
		"https://secure.example/2.png",
		"/relative.png",
	}, got)
}

func TestProxyBuilder_ResolveAllConcurrent(t *testing.T) {
	checker := newFakeChecker("a.example", "b.example", "c.example")
	checker.block = make(chan struct{})
	p := NewProber(NewMemoryStore(), checker, zap.NewNop())
	b := NewProxyBuilder("https://worker.example.com/", "/api/worker/image-proxy", p)

	done := make(chan []string)
	go func() {
		done <- b.ResolveAll(context.Background(), []string{
			"http://a.example/", "http://b.example/", "http://c.example/",
		})
	}()

	// all three checks are in flight before any completes
	require.Eventually(t, func() bool { return len(checker.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	close(checker.block)

	got := <-done
	assert.Equal(t, []string{"https://a.example/", "https://b.example/", "https://c.example/"}, got)
}

func TestProxyBuilder_ResolveAllCancelled(t *testing.T) {
	store := NewMemoryStore()
	checker := newFakeChecker("a.example")
	checker.block = make(chan struct{})
	p := NewProber(store, checker, zap.NewNop())
	b := NewProxyBuilder("https://worker.example.com/", "/api/worker/image-proxy", p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []string)
	go func() {
		done <- b.ResolveAll(ctx, []string{"http://a.example/x.png", "%zz"})
	}()

	require.Eventually(t, func() bool { return len(checker.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	got := <-done
	assert.Equal(t, []string{
		"https://worker.example.com/api/worker/image-proxy?url=" + url.QueryEscape("http://a.example/x.png"),
		"%zz",
	}, got)
	assert.Equal(t, 0, store.Len())
}
