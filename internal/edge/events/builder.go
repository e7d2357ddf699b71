package events

import (
	"time"

	"github.com/toeverything/edge-workers/internal/common/urlutil"
	"github.com/toeverything/edge-workers/internal/edge/edgectx"
)

// BuildRequestEvent creates a RequestEvent from the annotated request context
func BuildRequestEvent(rc *edgectx.RequestContext, statusCode int, workerID string) *RequestEvent {
	event := &RequestEvent{
		StatusCode: statusCode,
		CreatedAt:  time.Now().UTC(),
		WorkerID:   workerID,
	}
	if rc == nil {
		return event
	}

	event.RequestID = rc.RequestID
	event.App = rc.App
	event.Handler = rc.Handler
	event.Origin = rc.Origin
	event.ClientIP = rc.ClientIP
	event.TargetURL = rc.TargetURL
	event.TargetHash = rc.TargetHash()
	event.PolicyRejected = rc.PolicyRejected
	event.UpstreamFailed = rc.UpstreamFailed
	event.ServeTime = rc.Elapsed().Seconds()

	if ctx := rc.HTTPCtx; ctx != nil {
		event.Host = urlutil.ExtractHostname(string(ctx.Host()))
		event.Path = string(ctx.Path())
		event.Method = string(ctx.Method())
		event.UserAgent = string(ctx.UserAgent())
	}
	return event
}
