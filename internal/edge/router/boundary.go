package router

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/httputil"
	"github.com/toeverything/edge-workers/internal/common/requestid"
	"github.com/toeverything/edge-workers/internal/edge/clientip"
	"github.com/toeverything/edge-workers/internal/edge/edgectx"
)

// BoundaryOptions tunes Boundary
type BoundaryOptions struct {
	// Timeout bounds outbound work done on behalf of one request. Zero disables it.
	Timeout time.Duration
	// ClientIPHeaders are consulted in order for the client address
	ClientIPHeaders []string
	// OnComplete runs after the response is final, including for errors and panics
	OnComplete func(rc *edgectx.RequestContext, status int)
}

// Boundary is the outermost request handler. It assigns a request ID,
// attaches an edgectx.RequestContext and converts errors and panics from h
// into a 500 {success:false,message} envelope, so every request gets a response.
func Boundary(h Handler, logger *zap.Logger, opts BoundaryOptions) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx *fasthttp.RequestCtx) {
		reqID := requestid.FromRequest(ctx)
		rc := edgectx.New(ctx, reqID, logger, opts.Timeout)
		rc.ClientIP = clientip.Extract(ctx, opts.ClientIPHeaders)
		edgectx.Attach(ctx, rc)
		ctx.Response.Header.Set(requestid.HeaderName, reqID)

		defer func() {
			defer rc.Finish()
			if r := recover(); r != nil {
				rc.Logger.Error("Handler panicked",
					zap.Any("panic", r),
					zap.String("host", string(ctx.Host())),
					zap.String("path", string(ctx.Path())),
					zap.ByteString("stack", debug.Stack()))
				httputil.Failure(ctx, fmt.Sprint(r))
			}
			if opts.OnComplete != nil {
				opts.OnComplete(rc, ctx.Response.StatusCode())
			}
		}()

		if err := h.Serve(ctx); err != nil {
			rc.Logger.Error("Unhandled request error",
				zap.String("host", string(ctx.Host())),
				zap.String("path", string(ctx.Path())),
				zap.Error(err))
			httputil.Failure(ctx, err.Error())
		}
	}
}
