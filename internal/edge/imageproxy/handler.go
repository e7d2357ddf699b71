package imageproxy

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/httputil"
	"github.com/toeverything/edge-workers/internal/common/urlutil"
	"github.com/toeverything/edge-workers/internal/edge/edgectx"
	"github.com/toeverything/edge-workers/internal/edge/fetch"
	"github.com/toeverything/edge-workers/internal/edge/origin"
)

const (
	// HandlerName labels image proxy requests in logs and metrics
	HandlerName = "image_proxy"
	// FormatHeader carries the output format the client prefers
	FormatHeader = "X-Image-Format"
)

// passthroughHeaders are copied from the upstream response
var passthroughHeaders = []string{fasthttp.HeaderContentType, fasthttp.HeaderContentDisposition}

// Handler relays images so that http-only resources can be embedded in
// https pages
type Handler struct {
	gate    *origin.Gate
	fetcher fetch.Fetcher
}

func NewHandler(rules origin.RuleSet, fetcher fetch.Fetcher) *Handler {
	return &Handler{
		gate:    origin.NewGate(rules, origin.GateEither),
		fetcher: fetcher,
	}
}

// Serve handles GET ?url=
func (h *Handler) Serve(ctx *fasthttp.RequestCtx) error {
	rc := edgectx.From(ctx).WithHandler(HandlerName)
	requestOrigin := string(ctx.Request.Header.Peek(fasthttp.HeaderOrigin))
	rc.WithOrigin(requestOrigin)
	rules := h.gate.Rules()

	if !h.gate.Admit(ctx) {
		rc.RejectPolicy()
		rc.Logger.Warn("Invalid Origin",
			zap.ByteString("referer", ctx.Request.Header.Referer()))
		httputil.NotFound(ctx)
		return nil
	}

	raw := string(ctx.QueryArgs().Peek("url"))
	if raw == "" {
		httputil.BadRequest(ctx, `Missing "url" parameter`)
		return nil
	}

	target, ok := urlutil.Canonicalize(raw)
	if !ok {
		rc.Logger.Info("Invalid URL", zap.String("input", raw))
		origin.ApplyCORS(ctx, requestOrigin, rules)
		httputil.BadRequest(ctx, "Invalid URL")
		return nil
	}
	rc.WithTarget(target.String())

	outCtx, cancel := rc.Context()
	defer cancel()

	resp, err := h.fetcher.Do(outCtx, &fetch.Request{
		Method:          fasthttp.MethodGet,
		URL:             target.String(),
		Headers:         fetch.CloneHeaders(&ctx.Request.Header),
		FollowRedirects: true,
	})
	if err != nil {
		rc.FailUpstream()
		rc.Logger.Error("Error fetching image", zap.Error(err))
		httputil.Failure(ctx, "Internal Server Error")
		return nil
	}

	ctx.SetStatusCode(resp.StatusCode)
	for _, name := range passthroughHeaders {
		if v := resp.Header(name); v != "" {
			ctx.Response.Header.Set(name, v)
		}
	}
	ctx.Response.Header.Set(FormatHeader, PreferredFormat(string(ctx.Request.Header.Peek(fasthttp.HeaderAccept))))
	origin.ApplyCORS(ctx, requestOrigin, rules, fasthttp.MethodGet)
	ctx.SetBody(resp.Body)

	if !resp.OK() {
		rc.Logger.Debug("Upstream returned non-2xx", zap.Int("status", resp.StatusCode))
	}
	return nil
}

// PreferredFormat picks avif when the client accepts it, webp otherwise
func PreferredFormat(accept string) string {
	if strings.Contains(accept, "image/avif") {
		return "avif"
	}
	return "webp"
}
