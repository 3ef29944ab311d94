//nolint:testpackage // drives the clock directly
package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func newTestBreaker(now *time.Time) *Breaker {
	b := New(Config{Name: "content", FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})
	b.now = func() time.Time { return *now }
	return b
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now)

	fail := func() error { return errBackend }
	require.ErrorIs(t, b.Execute(fail), errBackend)
	assert.Equal(t, StateClosed, b.State())
	require.ErrorIs(t, b.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now)
	fail := func() error { return errBackend }
	_ = b.Execute(fail)
	_ = b.Execute(fail)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&now)
	fail := func() error { return errBackend }
	_ = b.Execute(fail)
	_ = b.Execute(fail)

	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, b.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	t.Parallel()

	errMissing := errors.New("missing")
	b := New(Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return err != nil && !errors.Is(err, errMissing) },
	})

	require.ErrorIs(t, b.Execute(func() error { return errMissing }), errMissing)
	assert.Equal(t, StateClosed, b.State())

	require.ErrorIs(t, b.Execute(func() error { return errBackend }), errBackend)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_DefaultIgnoresCancellation(t *testing.T) {
	t.Parallel()

	b := New(Config{FailureThreshold: 1})

	require.ErrorIs(t, b.Execute(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
