package router

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/toeverything/edge-workers/internal/common/httputil"
	"github.com/toeverything/edge-workers/internal/common/urlutil"
)

// MissObserver is told about requests that matched no route
type MissObserver interface {
	RouteMiss(host string)
}

type route struct {
	prefix  string
	handler Handler
}

// Builder collects (host, prefix) registrations. Prefixes keep their
// registration order per host.
type Builder struct {
	hosts map[string][]route
	order []string
	miss  MissObserver
}

func NewBuilder() *Builder {
	return &Builder{hosts: make(map[string][]route)}
}

// Add registers h for requests to host whose path starts with prefix.
// Adding an existing (host, prefix) pair replaces its handler in place.
func (b *Builder) Add(host, prefix string, h Handler) *Builder {
	host = strings.ToLower(host)
	routes, known := b.hosts[host]
	if !known {
		b.order = append(b.order, host)
	}
	for i := range routes {
		if routes[i].prefix == prefix {
			routes[i].handler = h
			return b
		}
	}
	b.hosts[host] = append(routes, route{prefix: prefix, handler: h})
	return b
}

// ObserveMisses reports unmatched requests to o
func (b *Builder) ObserveMisses(o MissObserver) *Builder {
	b.miss = o
	return b
}

// Build freezes the registrations into a Table. The Builder may be reused.
func (b *Builder) Build() *Table {
	hosts := make(map[string][]route, len(b.hosts))
	for host, routes := range b.hosts {
		hosts[host] = append([]route(nil), routes...)
	}
	return &Table{
		hosts: hosts,
		order: append([]string(nil), b.order...),
		miss:  b.miss,
	}
}

// Table is an immutable host then path-prefix routing table
type Table struct {
	hosts map[string][]route
	order []string
	miss  MissObserver
}

// Lookup returns the handler for host and path. The port is ignored and
// the first registered prefix of path wins, not the longest.
func (t *Table) Lookup(host, path string) (Handler, bool) {
	routes, ok := t.hosts[strings.ToLower(urlutil.ExtractHostname(host))]
	if !ok {
		return nil, false
	}
	for _, r := range routes {
		if strings.HasPrefix(path, r.prefix) {
			return r.handler, true
		}
	}
	return nil, false
}

// Dispatch routes ctx by its Host header and path. An unmatched request
// gets a 404 and a nil error. Handler errors are returned untouched.
func (t *Table) Dispatch(ctx *fasthttp.RequestCtx) error {
	host := string(ctx.Host())
	h, ok := t.Lookup(host, string(ctx.Path()))
	if !ok {
		if t.miss != nil {
			t.miss.RouteMiss(urlutil.ExtractHostname(host))
		}
		httputil.NotFound(ctx)
		return nil
	}
	return h.Serve(ctx)
}

func (t *Table) Serve(ctx *fasthttp.RequestCtx) error {
	return t.Dispatch(ctx)
}

// Hosts lists registered hosts in first-registration order
func (t *Table) Hosts() []string {
	return append([]string(nil), t.order...)
}

// Prefixes lists the prefixes registered for host in order
func (t *Table) Prefixes(host string) []string {
	routes := t.hosts[strings.ToLower(host)]
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.prefix
	}
	return out
}
