package probe

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/urlutil"
)

// Probe outcomes reported to Observer
const (
	ResultCached      = "cached"
	ResultReachable   = "reachable"
	ResultUnreachable = "unreachable"
)

// Observer receives one outcome per probed http URL
type Observer interface {
	ProbeResult(result string)
}

// Prober upgrades http URLs to https when the host is known, or found, to
// support it. It never fails: anything unexpected keeps the original URL.
type Prober struct {
	store    SupportStore
	checker  Checker
	observer Observer
	logger   *zap.Logger
}

func NewProber(store SupportStore, checker Checker, logger *zap.Logger) *Prober {
	return &Prober{
		store:   store,
		checker: checker,
		logger:  logger,
	}
}

// WithObserver attaches an outcome observer, typically metrics
func (p *Prober) WithObserver(o Observer) *Prober {
	p.observer = o
	return p
}

// ResolveScheme returns u unchanged for https, an https copy for hosts
// that support it, and u itself otherwise. Only positive results are stored.
func (p *Prober) ResolveScheme(ctx context.Context, u *url.URL) *url.URL {
	if u == nil || !strings.EqualFold(u.Scheme, "http") {
		return u
	}

	host := strings.ToLower(u.Hostname())
	upgraded := urlutil.WithScheme(u, "https")

	if p.store.Supports(ctx, host) {
		p.observe(ResultCached)
		return upgraded
	}

	if !p.checker.Reachable(ctx, upgraded.String()) {
		p.observe(ResultUnreachable)
		return u
	}

	p.store.MarkSupported(ctx, host)
	p.observe(ResultReachable)
	p.logger.Debug("Host supports HTTPS", zap.String("host", host))
	return upgraded
}

func (p *Prober) observe(result string) {
	if p.observer != nil {
		p.observer.ProbeResult(result)
	}
}
