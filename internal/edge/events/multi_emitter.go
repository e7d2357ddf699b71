package events

import (
	"errors"
)

// MultiEmitter dispatches events to multiple backends.
type MultiEmitter struct {
	emitters []EventEmitter
}

func NewMultiEmitter(emitters ...EventEmitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Emit sends the event to all registered emitters in order.
func (m *MultiEmitter) Emit(event *RequestEvent) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

// Close closes every emitter, even after a failure, and joins the errors.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
