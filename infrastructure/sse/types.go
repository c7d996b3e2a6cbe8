// Package sse fans server-sent events out to connected HTTP clients.
package sse

import (
	"context"
)

// Event is one server-sent event: "event: <Type>\ndata: <JSON>\n\n".
type Event struct {
	Type string `json:"type"`
	// Data must be JSON-serializable.
	Data any    `json:"data"`
	ID   string `json:"id,omitempty"`
	// Retry is the client reconnect delay in milliseconds.
	Retry int `json:"retry,omitempty"`
	// Audience restricts delivery to subscribers with the same audience.
	// Empty means every subscriber. It is never written to the wire.
	Audience string `json:"-"`
}

// Publisher sends events to the broker.
type Publisher interface {
	// Publish enqueues event; it fails when the broker buffer is full.
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the broker.
type Subscriber interface {
	// Subscribe returns the event channel and a cleanup func. The channel is
	// closed when the subscription ends.
	Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func())
}

// Broker manages SSE connections and event distribution.
type Broker interface {
	Publisher
	Subscriber
	Start(ctx context.Context) error
	Stop() error
	ClientCount() int
}

// EventFilter returns true for events the client should receive.
type EventFilter func(event Event) bool

// ClientOptions configures a single subscription.
type ClientOptions struct {
	Filter     EventFilter
	Audience   string
	BufferSize int
}

const eventTypeConnected = "connected"
