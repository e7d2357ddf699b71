package events

// EventEmitter defines the interface for event logging backends.
// Implementations should be fire-and-forget, non-blocking.
type EventEmitter interface {
	// Emit sends an event. Errors are logged internally, never returned.
	Emit(event *RequestEvent)

	// Close gracefully shuts down the emitter.
	Close() error
}

// NoopEmitter is used when event logging is disabled
type NoopEmitter struct{}

func (n *NoopEmitter) Emit(event *RequestEvent) {}

func (n *NoopEmitter) Close() error { return nil }
