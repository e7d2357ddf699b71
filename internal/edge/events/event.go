package events

import (
	"time"
)

// RequestEvent is one access log record
type RequestEvent struct {
	RequestID string `json:"request_id"`
	Host      string `json:"host"`
	Path      string `json:"path"`
	Method    string `json:"method"`

	App       string `json:"app"`
	Handler   string `json:"handler"`
	Origin    string `json:"origin,omitempty"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`

	// Outbound target, when the handler had one
	TargetURL  string `json:"target_url,omitempty"`
	TargetHash string `json:"target_hash,omitempty"`

	StatusCode     int     `json:"status_code"`
	ServeTime      float64 `json:"serve_time"` // seconds
	PolicyRejected bool    `json:"policy_rejected,omitempty"`
	UpstreamFailed bool    `json:"upstream_failed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	WorkerID  string    `json:"worker_id"`
}
