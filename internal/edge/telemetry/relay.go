package telemetry

import (
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/httputil"
	"github.com/toeverything/edge-workers/internal/edge/edgectx"
	"github.com/toeverything/edge-workers/internal/edge/fetch"
	"github.com/toeverything/edge-workers/internal/edge/origin"
)

// HandlerName labels relayed telemetry in logs and metrics
const HandlerName = "telemetry"

// dropHeaders are never forwarded upstream
var dropHeaders = map[string]struct{}{
	"host":              {},
	"content-length":    {},
	"connection":        {},
	"keep-alive":        {},
	"transfer-encoding": {},
	"upgrade":           {},
	"te":                {},
	"trailer":           {},
	"accept-encoding":   {},
}

// Relay forwards analytics POSTs to a fixed upstream
type Relay struct {
	upstream *url.URL
	rules    origin.RuleSet
	fetcher  fetch.Fetcher
}

// NewRelay creates a Relay. upstream must be an absolute http(s) URL;
// only its scheme and host are used.
func NewRelay(upstream string, rules origin.RuleSet, fetcher fetch.Fetcher) (*Relay, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fetch.ErrUnsupportedURL
	}
	return &Relay{
		upstream: &url.URL{Scheme: u.Scheme, Host: u.Host},
		rules:    rules,
		fetcher:  fetcher,
	}, nil
}

func (r *Relay) Serve(ctx *fasthttp.RequestCtx) error {
	rc := edgectx.From(ctx).WithHandler(HandlerName)
	requestOrigin := string(ctx.Request.Header.Peek(fasthttp.HeaderOrigin))
	rc.WithOrigin(requestOrigin)

	switch {
	case ctx.IsOptions():
		origin.ApplyCORS(ctx, requestOrigin, r.rules, fasthttp.MethodPost, fasthttp.MethodOptions)
		ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowHeaders, fasthttp.HeaderContentType)
		httputil.NoContent(ctx)
		return nil
	case !ctx.IsPost():
		rc.Logger.Debug("Rejected method", zap.ByteString("method", ctx.Method()))
		httputil.MethodNotAllowed(ctx)
		return nil
	}

	target := r.Target(ctx)
	rc.WithTarget(target)

	outCtx, cancel := rc.Context()
	defer cancel()

	resp, err := r.fetcher.Do(outCtx, &fetch.Request{
		Method:  fasthttp.MethodPost,
		URL:     target,
		Headers: forwardHeaders(&ctx.Request.Header),
		Body:    ctx.PostBody(),
	})
	if err != nil {
		rc.FailUpstream()
		rc.Logger.Error("Telemetry relay failed", zap.Error(err))
		httputil.Failure(ctx, "Internal Server Error")
		return nil
	}

	ctx.SetStatusCode(resp.StatusCode)
	if ct := resp.Header(fasthttp.HeaderContentType); ct != "" {
		ctx.SetContentType(ct)
	}
	origin.ApplyCORS(ctx, requestOrigin, r.rules)
	ctx.SetBody(resp.Body)
	return nil
}

// Target maps the inbound path and query onto the upstream host
func (r *Relay) Target(ctx *fasthttp.RequestCtx) string {
	u := *r.upstream
	u.Path = string(ctx.Path())
	u.RawQuery = string(ctx.URI().QueryString())
	return u.String()
}

func forwardHeaders(h *fasthttp.RequestHeader) map[string][]string {
	out := make(map[string][]string)
	for key, value := range h.All() {
		name := string(key)
		if _, drop := dropHeaders[strings.ToLower(name)]; drop {
			continue
		}
		out[name] = append(out[name], string(value))
	}
	return out
}
