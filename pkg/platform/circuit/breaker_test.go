package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	b := New("store", WithFailureThreshold(3), WithCooldown(time.Second), WithClock(clock))
	assert.Equal(t, "store", b.Name())
	assert.True(t, b.Allow())

	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.Equal(t, StateChange{Opened: true}, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "first caller after cooldown probes")
	assert.False(t, b.Allow(), "only one probe in flight")
	assert.Equal(t, StateHalfOpen, b.State())

	assert.Equal(t, StateChange{Closed: true}, b.RecordSuccess())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	b := New("store", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerReleaseReturnsProbeSlot(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := New("store", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(func() time.Time { return now }))
	b.RecordFailure()

	now = now.Add(time.Second)
	assert.True(t, b.Allow())
	b.Release()
	assert.Equal(t, StateOpen, b.State())
	assert.True(t, b.Allow(), "released slot is available to the next caller")

	b.Release()
	b.Release()
	assert.Equal(t, StateOpen, b.State())
}
