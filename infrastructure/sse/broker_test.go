package sse

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waghostel/LearningSong-sub001/infrastructure/logger"
)

func startBroker(t *testing.T, opts ...BrokerOption) Broker {
	t.Helper()

	b := NewBroker(logger.NewNop(), opts...)
	require.NoError(t, b.Start(t.Context()))
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %q", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	events, cleanup := b.Subscribe(t.Context())
	defer cleanup()

	require.NoError(t, b.Publish(t.Context(), Event{Type: "task:status", Data: "x"}))
	assert.Equal(t, "task:status", receive(t, events).Type)
}

func TestBroker_AudienceRouting(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	alice, cleanA := b.Subscribe(t.Context(), WithAudience("alice"))
	defer cleanA()
	bob, cleanB := b.Subscribe(t.Context(), WithAudience("bob"))
	defer cleanB()

	require.NoError(t, b.Publish(t.Context(), Event{Type: "task:status", Audience: "alice"}))

	assert.Equal(t, "task:status", receive(t, alice).Type)
	assertNoEvent(t, bob)
}

func TestBroker_TypeFilter(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	events, cleanup := b.Subscribe(t.Context(), WithTypes("task:status"))
	defer cleanup()

	require.NoError(t, b.Publish(t.Context(), Event{Type: "other"}))
	require.NoError(t, b.Publish(t.Context(), Event{Type: "task:status"}))

	assert.Equal(t, "task:status", receive(t, events).Type)
}

func TestBroker_MaxClients(t *testing.T) {
	t.Parallel()

	b := startBroker(t, WithMaxClients(1))
	_, cleanup := b.Subscribe(t.Context())
	defer cleanup()

	rejected, _ := b.Subscribe(t.Context())
	_, ok := <-rejected
	assert.False(t, ok)
	assert.Equal(t, 1, b.ClientCount())
}

func TestBroker_ContextCancelRemovesClient(t *testing.T) {
	t.Parallel()

	b := startBroker(t)
	ctx, cancel := context.WithCancel(t.Context())
	_, _ = b.Subscribe(ctx)
	require.Equal(t, 1, b.ClientCount())

	cancel()
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWriteEvent_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteEvent(&buf, Event{Type: "task:status", ID: "7", Data: map[string]string{"a": "b"}}))
	assert.Equal(t, "event: task:status\nid: 7\ndata: {\"a\":\"b\"}\n\n", buf.String())
}
