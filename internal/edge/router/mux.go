package router

import (
	"github.com/valyala/fasthttp"

	"github.com/toeverything/edge-workers/internal/common/httputil"
)

// Mux routes by exact method and path inside one application.
// Anything unmatched goes to the fallback, 405 by default.
type Mux struct {
	routes   map[string]map[string]Handler // method -> path -> handler
	fallback Handler
}

func NewMux() *Mux {
	return &Mux{
		routes: make(map[string]map[string]Handler),
		fallback: HandlerFunc(func(ctx *fasthttp.RequestCtx) error {
			httputil.MethodNotAllowed(ctx)
			return nil
		}),
	}
}

func (m *Mux) Handle(method, path string, h Handler) *Mux {
	if m.routes[method] == nil {
		m.routes[method] = make(map[string]Handler)
	}
	m.routes[method][path] = h
	return m
}

func (m *Mux) Get(path string, h Handler) *Mux     { return m.Handle(fasthttp.MethodGet, path, h) }
func (m *Mux) Post(path string, h Handler) *Mux    { return m.Handle(fasthttp.MethodPost, path, h) }
func (m *Mux) Options(path string, h Handler) *Mux { return m.Handle(fasthttp.MethodOptions, path, h) }

// Fallback replaces the handler for unmatched requests
func (m *Mux) Fallback(h Handler) *Mux {
	m.fallback = h
	return m
}

func (m *Mux) Serve(ctx *fasthttp.RequestCtx) error {
	if paths, ok := m.routes[string(ctx.Method())]; ok {
		if h, ok := paths[string(ctx.Path())]; ok {
			return h.Serve(ctx)
		}
	}
	return m.fallback.Serve(ctx)
}
