package edgectx

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/edge/hash"
)

const userValueKey = "edge_request_context"

// RequestContext carries request-scoped state from the boundary through
// the handler and back to instrumentation. Handlers annotate it; they never
// record metrics or events themselves.
type RequestContext struct {
	RequestID string
	Logger    *zap.Logger
	HTTPCtx   *fasthttp.RequestCtx
	StartTime time.Time
	ClientIP  string

	App       string
	Handler   string
	Origin    string
	TargetURL string

	PolicyRejected bool
	UpstreamFailed bool
	timeout        time.Duration

	// base is cancelled by Finish. fasthttp reports no client disconnects,
	// so the end of the request is the earliest abort signal available.
	base   context.Context
	finish context.CancelFunc
}

// New creates a RequestContext. A zero timeout means outbound calls are
// bounded only by their own client timeouts.
func New(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger, timeout time.Duration) *RequestContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, finish := context.WithCancel(context.Background())
	return &RequestContext{
		RequestID: requestID,
		Logger:    logger.With(zap.String("request_id", requestID)),
		HTTPCtx:   ctx,
		StartTime: time.Now(),
		timeout:   timeout,
		base:      base,
		finish:    finish,
	}
}

// WithApp names the worker app the request was routed to
func (rc *RequestContext) WithApp(app string) *RequestContext {
	rc.App = app
	rc.Logger = rc.Logger.With(zap.String("app", app))
	return rc
}

// WithHandler names the handler serving the request
func (rc *RequestContext) WithHandler(handler string) *RequestContext {
	rc.Handler = handler
	rc.Logger = rc.Logger.With(zap.String("handler", handler))
	return rc
}

// WithOrigin records the caller's Origin header value
func (rc *RequestContext) WithOrigin(origin string) *RequestContext {
	rc.Origin = origin
	if origin != "" {
		rc.Logger = rc.Logger.With(zap.String("origin", origin))
	}
	return rc
}

// WithTarget records the outbound URL the handler acts on
func (rc *RequestContext) WithTarget(target string) *RequestContext {
	rc.TargetURL = target
	rc.Logger = rc.Logger.With(zap.String("url", target))
	return rc
}

// RejectPolicy marks the request as refused by the origin policy
func (rc *RequestContext) RejectPolicy() {
	rc.PolicyRejected = true
}

// FailUpstream marks the request as failed on the outbound side
func (rc *RequestContext) FailUpstream() {
	rc.UpstreamFailed = true
}

// TargetHash returns the xxhash of TargetURL, or "" when no target was set
func (rc *RequestContext) TargetHash() string {
	return hash.URL(rc.TargetURL)
}

// Elapsed returns time since the request entered the boundary
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}

// TimeRemaining returns the unused part of the request budget.
// Returns 0 once the budget is spent, and -1 when there is no budget.
func (rc *RequestContext) TimeRemaining() time.Duration {
	if rc.timeout <= 0 {
		return -1
	}
	remaining := rc.timeout - rc.Elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Context returns a context for outbound calls bounded by the request
// budget. It is cancelled by Finish.
func (rc *RequestContext) Context() (context.Context, context.CancelFunc) {
	parent := rc.base
	if parent == nil {
		parent = context.Background()
	}
	remaining := rc.TimeRemaining()
	if remaining < 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, remaining)
}

// Finish cancels every context handed out by Context. Outbound work still
// running for this request is abandoned.
func (rc *RequestContext) Finish() {
	if rc.finish != nil {
		rc.finish()
	}
}

// Attach stores rc on the fasthttp request
func Attach(ctx *fasthttp.RequestCtx, rc *RequestContext) {
	ctx.SetUserValue(userValueKey, rc)
}

// From returns the RequestContext attached to ctx. Requests that did not
// pass through the boundary get a fresh, unattached context with a no-op
// logger, so handlers can be driven directly in tests.
func From(ctx *fasthttp.RequestCtx) *RequestContext {
	if rc, ok := ctx.UserValue(userValueKey).(*RequestContext); ok && rc != nil {
		return rc
	}
	return New(ctx, "", zap.NewNop(), 0)
}
