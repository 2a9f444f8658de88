// Package events publishes run summaries for downstream consumers.
package events

import "context"

// Publisher emits one JSON-encodable payload per call.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, any) error { return nil }
