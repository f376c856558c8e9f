package location

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_LatestEmptyUntilUpdate(t *testing.T) {
	tr := NewTracker(clockwork.NewFakeClock())
	_, ok := tr.Latest()
	assert.False(t, ok)

	tr.Update(Fix{Lat: 12.97, Lng: 77.59, Accuracy: 8})
	f, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, 12.97, f.Lat)
	assert.False(t, f.Timestamp.IsZero())
}

func TestTracker_AwaitResolvesOnUpdate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock)

	done := make(chan Fix, 1)
	go func() {
		f, err := tr.Await(context.Background(), 5*time.Second)
		assert.NoError(t, err)
		done <- f
	}()

	clock.BlockUntil(1)
	tr.Update(Fix{Lat: 1, Lng: 2})

	select {
	case f := <-done:
		assert.Equal(t, 1.0, f.Lat)
	case <-time.After(time.Second):
		t.Fatal("Await did not return")
	}
}

func TestTracker_AwaitTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tr := NewTracker(clock)

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Await(context.Background(), 5*time.Second)
		errCh <- err
	}()

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("Await did not time out")
	}

	// a later update must not block on the abandoned waiter
	tr.Update(Fix{Lat: 3, Lng: 4})
}

func TestTracker_ResolveUsesKnownFix(t *testing.T) {
	tr := NewTracker(clockwork.NewFakeClock())
	tr.Update(Fix{Lat: 5, Lng: 6})

	f, err := tr.Resolve(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 6.0, f.Lng)
}

func TestFix_ValidateAndMapLink(t *testing.T) {
	assert.NoError(t, Fix{Lat: 12.9716, Lng: 77.5946}.Validate())
	assert.Error(t, Fix{Lat: 91}.Validate())
	assert.Error(t, Fix{Lng: -181}.Validate())
	assert.Error(t, Fix{Accuracy: -1}.Validate())

	assert.Equal(t, "https://maps.google.com/maps?q=12.9716,77.5946", Fix{Lat: 12.9716, Lng: 77.5946}.MapLink())
}
