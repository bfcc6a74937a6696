package duties

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelCoalesces(t *testing.T) {
	ch := NewChannel()

	assert.False(t, ch.Pending())

	for i := 0; i < 10; i++ {
		ch.OnValidatorsAdded()
	}

	assert.True(t, ch.Pending())
	assert.False(t, ch.Pending())
}

func TestReschedulerRun(t *testing.T) {
	ch := NewChannel()

	var calls atomic.Int32

	done := make(chan struct{}, 2)

	r := NewRescheduler(ch, func(ctx context.Context) error {
		n := calls.Add(1)
		done <- struct{}{}

		if n == 1 {
			return errors.New("beacon node unavailable")
		}

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)

	go func() {
		result <- r.Run(ctx)
	}()

	ch.OnValidatorsAdded()
	waitFor(t, done)

	ch.OnValidatorsAdded()
	waitFor(t, done)

	cancel()

	select {
	case err := <-result:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("rescheduler did not stop")
	}

	assert.Equal(t, int32(2), calls.Load())
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reschedule was not called")
	}
}
