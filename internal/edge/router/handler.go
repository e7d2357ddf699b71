package router

import (
	"github.com/valyala/fasthttp"
)

// Handler serves a routed request. A returned error is turned into a
// 500 response by Boundary.
type Handler interface {
	Serve(ctx *fasthttp.RequestCtx) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx *fasthttp.RequestCtx) error

func (f HandlerFunc) Serve(ctx *fasthttp.RequestCtx) error {
	return f(ctx)
}

// Wrap adapts a plain fasthttp handler that cannot fail
func Wrap(h fasthttp.RequestHandler) Handler {
	return HandlerFunc(func(ctx *fasthttp.RequestCtx) error {
		h(ctx)
		return nil
	})
}
