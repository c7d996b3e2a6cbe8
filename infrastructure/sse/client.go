package sse

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type client struct {
	id       string
	events   chan Event
	filter   EventFilter
	audience string
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newClient(ctx context.Context, opts ClientOptions) *client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &client{
		id:       uuid.NewString(),
		events:   make(chan Event, opts.BufferSize),
		filter:   opts.Filter,
		audience: opts.Audience,
		ctx:      clientCtx,
		cancel:   cancel,
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.events)
}

func (c *client) wants(event Event) bool {
	if event.Audience != "" && event.Audience != c.audience {
		return false
	}
	return c.filter == nil || c.filter(event)
}

// send returns false only when the client buffer is full.
func (c *client) send(event Event) bool {
	if !c.wants(event) {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}

	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}
