package linkpreview

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/url"
	"slices"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/httputil"
	"github.com/toeverything/edge-workers/internal/common/urlutil"
	"github.com/toeverything/edge-workers/internal/edge/edgectx"
	"github.com/toeverything/edge-workers/internal/edge/fetch"
	"github.com/toeverything/edge-workers/internal/edge/origin"
	"github.com/toeverything/edge-workers/internal/edge/probe"
)

// HandlerName labels link preview requests in logs and metrics
const HandlerName = "link_preview"

type previewRequest struct {
	URL any `json:"url"`
}

// Handler serves link preview requests
type Handler struct {
	gate      *origin.Gate
	fetcher   fetch.Fetcher
	prober    *probe.Prober
	proxyPath string
}

// NewHandler creates a Handler. proxyPath is the image proxy path on the
// serving worker; http resources that cannot be upgraded are routed there.
func NewHandler(rules origin.RuleSet, fetcher fetch.Fetcher, prober *probe.Prober, proxyPath string) *Handler {
	return &Handler{
		gate:      origin.NewGate(rules, origin.GateStrict),
		fetcher:   fetcher,
		prober:    prober,
		proxyPath: proxyPath,
	}
}

// Options answers the CORS preflight
func (h *Handler) Options(ctx *fasthttp.RequestCtx) error {
	rc := edgectx.From(ctx).WithHandler(HandlerName)
	requestOrigin := string(ctx.Request.Header.Peek(fasthttp.HeaderOrigin))
	rc.WithOrigin(requestOrigin).Logger.Debug("Handling OPTIONS request")

	origin.ApplyCORS(ctx, requestOrigin, h.gate.Rules(), fasthttp.MethodPost, fasthttp.MethodOptions)
	ctx.Response.Header.Set(fasthttp.HeaderAccessControlAllowHeaders, fasthttp.HeaderContentType)
	ctx.SetStatusCode(fasthttp.StatusOK)
	return nil
}

// Preview fetches the posted URL and returns its metadata
func (h *Handler) Preview(ctx *fasthttp.RequestCtx) error {
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

	var body *previewRequest
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body == nil {
		rc.Logger.Info("Invalid request body", zap.Error(err))
		origin.ApplyCORS(ctx, requestOrigin, rules)
		httputil.BadRequest(ctx, "Invalid request body")
		return nil
	}

	raw, _ := body.URL.(string)
	target, ok := urlutil.Canonicalize(raw)
	if !ok {
		rc.Logger.Info("Invalid URL", zap.Any("input", body.URL))
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
		rc.Logger.Error("Error fetching URL", zap.Error(err))
		httputil.Failure(ctx, "Internal Server Error")
		return nil
	}
	rc.Logger.Debug("Fetched URL",
		zap.Int("status", resp.StatusCode),
		zap.String("final_url", resp.FinalURL))

	base := target
	if resp.FinalURL != "" {
		if u, err := url.Parse(resp.FinalURL); err == nil && u.Host != "" {
			base = u
		}
	}

	md := Extract(bytes.NewReader(resp.Body), base)
	applyContentType(md, resp.Header(fasthttp.HeaderContentType))

	if favicon, ok := h.defaultFavicon(outCtx, base, rc.Logger); ok && !slices.Contains(md.Favicons, favicon) {
		md.Favicons = append(md.Favicons, favicon)
	}

	builder := probe.NewProxyBuilder(httputil.RequestURL(ctx), h.proxyPath, h.prober)
	md.Images = builder.ResolveAll(outCtx, md.Images)
	md.Favicons = builder.ResolveAll(outCtx, md.Favicons)

	origin.ApplyCORS(ctx, requestOrigin, rules)
	httputil.JSON(ctx, md, fasthttp.StatusOK)
	rc.Logger.Debug("Sending response", zap.Int("response_size", len(ctx.Response.Body())))
	return nil
}

// defaultFavicon checks /favicon.ico on the origin of base.
// A failed check only means no default favicon.
func (h *Handler) defaultFavicon(ctx context.Context, base *url.URL, logger *zap.Logger) (string, bool) {
	favicon := urlutil.CanonicalString(base.ResolveReference(&url.URL{Path: "/favicon.ico"}).String())
	if favicon == "" {
		return "", false
	}

	resp, err := h.fetcher.Do(ctx, &fetch.Request{
		Method:          fasthttp.MethodHead,
		URL:             favicon,
		FollowRedirects: true,
	})
	if err != nil {
		logger.Debug("Favicon check failed", zap.String("favicon", favicon), zap.Error(err))
		return "", false
	}
	return favicon, resp.OK()
}

// applyContentType fills contentType and charset from the upstream header.
// A charset declared in the header wins over a <meta charset>.
func applyContentType(md *Metadata, header string) {
	if header == "" {
		return
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		md.ContentType = strings.TrimSpace(strings.Split(header, ";")[0])
		return
	}
	md.ContentType = mediaType
	if charset := params["charset"]; charset != "" {
		md.Charset = strings.ToLower(charset)
	}
}
