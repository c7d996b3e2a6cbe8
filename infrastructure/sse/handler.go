package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
)

// Serve streams broker events to the client behind c until it disconnects.
func Serve(c *gin.Context, b Broker, log logger.Logger, opts ...ClientOption) {
	events, cleanup := b.Subscribe(c.Request.Context(), opts...)
	defer cleanup()

	// A closed channel straight away means the broker refused the client.
	var pending []Event
	select {
	case ev, ok := <-events:
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
			return
		}
		pending = append(pending, ev)
	default:
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	connected := Event{
		Type: eventTypeConnected,
		Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	}
	for _, ev := range append([]Event{connected}, pending...) {
		if err := writeEvent(c.Writer, ev); err != nil {
			log.Debug("SSE write failed on connect", logger.Error(err))
			return
		}
	}

	heartbeat := time.NewTicker(DefaultHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, event); err != nil {
				log.Debug("SSE write failed (client likely disconnected)",
					logger.Error(err), logger.String("event_type", event.Type))
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprintf(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// Handler returns a gin handler that calls Serve with fixed options.
func Handler(b Broker, log logger.Logger, opts ...ClientOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		Serve(c, b, log, opts...)
	}
}

func writeEvent(w gin.ResponseWriter, event Event) error {
	if err := WriteEvent(w, event); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// WriteEvent encodes event in the SSE wire format.
func WriteEvent(w io.Writer, event Event) error {
	if event.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return fmt.Errorf("write event type: %w", err)
		}
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("write event id: %w", err)
		}
	}
	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return fmt.Errorf("write retry: %w", err)
		}
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err = fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	return nil
}
