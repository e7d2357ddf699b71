package probe

import (
	"context"
	"sync"
)

type fakeChecker struct {
	mu        sync.Mutex
	calls     []string
	reachable map[string]bool // keyed by https URL host, missing means unreachable
	block     chan struct{}
}

func newFakeChecker(reachableHosts ...string) *fakeChecker {
	c := &fakeChecker{reachable: make(map[string]bool)}
	for _, h := range reachableHosts {
		c.reachable[h] = true
	}
	return c
}

func (c *fakeChecker) Reachable(ctx context.Context, httpsURL string) bool {
	c.mu.Lock()
	c.calls = append(c.calls, httpsURL)
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false
		}
	}

	u := mustParse(httpsURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachable[u.Hostname()]
}

func (c *fakeChecker) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ProbeResult(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}
