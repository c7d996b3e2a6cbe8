package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := New(Config{FailureThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	for range 2 {
		require.ErrorIs(t, b.Execute(ctx, func() error { return errUpstream }), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second})
	b.now = func() time.Time { return now }

	_ = b.Execute(context.Background(), func() error { return errUpstream })
	require.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := New(Config{FailureThreshold: 1, Timeout: time.Second})
	b.now = func() time.Time { return now }

	_ = b.Execute(context.Background(), func() error { return errUpstream })
	now = now.Add(2 * time.Second)
	_ = b.Execute(context.Background(), func() error { return errUpstream })

	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_IgnoresCallerErrors(t *testing.T) {
	t.Parallel()

	errBadInput := errors.New("bad input")
	b := New(Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errBadInput) },
	})

	_ = b.Execute(context.Background(), func() error { return errBadInput })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	t.Parallel()

	var transitions []string
	b := New(Config{
		FailureThreshold: 1,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Execute(context.Background(), func() error { return errUpstream })
	b.Reset()

	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}
