package probe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/edge/fetch"
)

// Checker tests whether an https URL answers at all
type Checker interface {
	Reachable(ctx context.Context, httpsURL string) bool
}

// HTTPChecker sends a HEAD without following redirects. Any HTTP response,
// including 3xx and error statuses, means reachable. Transport failures
// (refused connection, TLS error, timeout) mean not reachable.
type HTTPChecker struct {
	fetcher fetch.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

func NewHTTPChecker(fetcher fetch.Fetcher, timeout time.Duration, logger *zap.Logger) *HTTPChecker {
	return &HTTPChecker{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *HTTPChecker) Reachable(ctx context.Context, httpsURL string) bool {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.fetcher.Do(ctx, &fetch.Request{
		Method: "HEAD",
		URL:    httpsURL,
	})
	if err != nil {
		c.logger.Debug("HTTPS probe failed", zap.String("url", httpsURL), zap.Error(err))
		return false
	}

	c.logger.Debug("HTTPS probe answered",
		zap.String("url", httpsURL),
		zap.Int("status_code", resp.StatusCode))
	return true
}
