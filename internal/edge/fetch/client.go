package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
	"github.com/toeverything/edge-workers/internal/common/urlutil"
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrInvalidRedirect  = errors.New("invalid redirect location")
	ErrUnsupportedURL   = errors.New("unsupported URL")
)

// Fetcher performs outbound HTTP requests
type Fetcher interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request describes an outbound call
type Request struct {
	Method string
	URL    string
	// Headers are forwarded as-is. A User-Agent here overrides the configured one.
	Headers         map[string][]string
	Body            []byte
	FollowRedirects bool
}

// Response holds a fully read upstream response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string][]string
	// FinalURL is the URL that produced this response after redirects
	FinalURL string
}

// Header returns the first value of the named header (case-insensitive)
func (r *Response) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Options configure a Client
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	MaxRedirects   int
	MaxBodySize    int
	SSRFProtection bool
	// Dial overrides the dialer, mainly for tests
	Dial fasthttp.DialFunc
}

// OptionsFromConfig maps the fetch configuration section to Options
func OptionsFromConfig(cfg configtypes.FetchConfig) Options {
	return Options{
		Timeout:        cfg.Timeout.ToDuration(),
		UserAgent:      cfg.UserAgent,
		MaxRedirects:   cfg.MaxRedirects,
		MaxBodySize:    cfg.MaxBodySize,
		SSRFProtection: cfg.SSRFProtection == nil || *cfg.SSRFProtection,
	}
}

// Client is a Fetcher over fasthttp with redirect handling done here,
// so every hop goes through the same dialer checks.
type Client struct {
	client *fasthttp.Client
	opts   Options
	logger *zap.Logger
}

var _ Fetcher = (*Client)(nil)

func NewClient(opts Options, logger *zap.Logger) *Client {
	client := &fasthttp.Client{
		ReadTimeout:              opts.Timeout,
		WriteTimeout:             opts.Timeout,
		MaxResponseBodySize:      opts.MaxBodySize,
		NoDefaultUserAgentHeader: opts.UserAgent == "",
	}

	switch {
	case opts.Dial != nil:
		client.Dial = opts.Dial
	case opts.SSRFProtection:
		client.Dial = ssrfSafeDial(opts.Timeout)
	}

	return &Client{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Do sends req, following up to MaxRedirects redirects when asked.
// Cancelling ctx abandons the in-flight request.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	body := req.Body

	current, err := parseTarget(req.URL)
	if err != nil {
		return nil, err
	}

	for hop := 0; ; hop++ {
		resp, err := c.roundTrip(ctx, method, current.String(), req.Headers, body)
		if err != nil {
			return nil, err
		}

		location := resp.Header(fasthttp.HeaderLocation)
		if !req.FollowRedirects || !isRedirect(resp.StatusCode) || location == "" {
			resp.FinalURL = current.String()
			return resp, nil
		}

		if hop >= c.opts.MaxRedirects {
			return nil, fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, hop)
		}

		next, err := current.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidRedirect, location, err)
		}
		if next.Scheme != "http" && next.Scheme != "https" {
			return nil, fmt.Errorf("%w %q", ErrInvalidRedirect, location)
		}

		if resp.StatusCode == fasthttp.StatusSeeOther ||
			(method == fasthttp.MethodPost && (resp.StatusCode == fasthttp.StatusMovedPermanently || resp.StatusCode == fasthttp.StatusFound)) {
			method = fasthttp.MethodGet
			body = nil
		}

		c.logger.Debug("Following redirect",
			zap.String("from", current.String()),
			zap.String("to", next.String()),
			zap.Int("status_code", resp.StatusCode))
		current = next
	}
}

func (c *Client) roundTrip(ctx context.Context, method, target string, headers map[string][]string, body []byte) (*Response, error) {
	// Not pooled: an abandoned request may still be owned by fasthttp
	req := &fasthttp.Request{}
	resp := &fasthttp.Response{}

	req.SetRequestURI(target)
	req.Header.SetMethod(method)
	if c.opts.UserAgent != "" {
		req.Header.SetUserAgent(c.opts.UserAgent)
	}
	for name, values := range headers {
		for i, value := range values {
			if i == 0 {
				req.Header.Set(name, value)
			} else {
				req.Header.Add(name, value)
			}
		}
	}
	// Bodies are consumed decoded, so the encoding is negotiated here
	req.Header.Del(fasthttp.HeaderAcceptEncoding)
	if method == fasthttp.MethodHead {
		resp.SkipBody = true
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}

	body, decoded, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s response body: %w", target, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       body,
		Headers:    make(map[string][]string),
	}
	for key, value := range resp.Header.All() {
		k := string(key)
		if decoded && (strings.EqualFold(k, fasthttp.HeaderContentEncoding) || strings.EqualFold(k, fasthttp.HeaderContentLength)) {
			continue
		}
		out.Headers[k] = append(out.Headers[k], string(value))
	}
	return out, nil
}

// decodeBody returns a copy of the response body with any Content-Encoding
// removed. decoded reports whether the body was transformed.
func decodeBody(resp *fasthttp.Response) (body []byte, decoded bool, err error) {
	encoding := strings.TrimSpace(string(resp.Header.ContentEncoding()))
	if encoding == "" || strings.EqualFold(encoding, "identity") || len(resp.Body()) == 0 {
		return append([]byte(nil), resp.Body()...), false, nil
	}
	plain, err := resp.BodyUncompressed()
	if err != nil {
		return nil, false, err
	}
	return append([]byte(nil), plain...), true, nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline := time.Now().Add(c.opts.Timeout)
	if c.opts.Timeout <= 0 {
		deadline = time.Now().Add(time.Minute)
	}
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if ctx.Done() == nil {
		return c.client.DoDeadline(req, resp, deadline)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.client.DoDeadline(req, resp, deadline)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnsupportedURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedURL, raw)
	}
	return u, nil
}

func isRedirect(status int) bool {
	switch status {
	case fasthttp.StatusMovedPermanently, fasthttp.StatusFound, fasthttp.StatusSeeOther,
		fasthttp.StatusTemporaryRedirect, fasthttp.StatusPermanentRedirect:
		return true
	}
	return false
}

// ssrfSafeDial resolves the host, rejects private addresses, then connects.
// Resolving here instead of in fasthttp blocks DNS rebinding to private ranges.
func ssrfSafeDial(timeout time.Duration) fasthttp.DialFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}

		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, fmt.Errorf("DNS resolution failed for %q: %w", host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no IP addresses found for %q", host)
		}

		for _, ip := range ips {
			if err := urlutil.ValidateResolvedIP(ip); err != nil {
				return nil, fmt.Errorf("SSRF protection for %q: %w", host, err)
			}
		}
		return fasthttp.DialTimeout(net.JoinHostPort(ips[0].String(), port), timeout)
	}
}
