package statestream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextWithin(t *testing.T, sub *Subscription[int]) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := sub.Next(ctx)
	require.NoError(t, err)
	return v
}

func TestStream_SubscribeReplaysCurrent(t *testing.T) {
	s := New(7)
	sub := s.Subscribe()
	defer sub.Close()

	assert.Equal(t, 7, nextWithin(t, sub))
}

func TestStream_UpdatesDeliveredInOrder(t *testing.T) {
	s := New(0)
	sub := s.Subscribe()
	defer sub.Close()

	s.Update(1)
	s.Update(2)
	s.Update(3)

	assert.Equal(t, 0, nextWithin(t, sub))
	assert.Equal(t, 1, nextWithin(t, sub))
	assert.Equal(t, 2, nextWithin(t, sub))
	assert.Equal(t, 3, nextWithin(t, sub))
	assert.Equal(t, 3, s.Current())
}

func TestStream_LateSubscriberSeesOnlyLatest(t *testing.T) {
	s := New(0)
	s.Update(1)
	s.Update(2)

	sub := s.Subscribe()
	defer sub.Close()

	assert.Equal(t, 2, nextWithin(t, sub))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_NextBlocksUntilUpdate(t *testing.T) {
	s := New(0)
	sub := s.Subscribe()
	defer sub.Close()
	nextWithin(t, sub)

	done := make(chan int, 1)
	go func() {
		v, err := sub.Next(context.Background())
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.Update(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Update")
	}
}

func TestStream_CloseWakesNext(t *testing.T) {
	s := New(0)
	sub := s.Subscribe()
	nextWithin(t, sub)

	errs := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake Next")
	}
	assert.Equal(t, 0, s.Subscribers())

	// Updates after close are dropped silently.
	s.Update(1)
	sub.Close()
}

func TestStream_ConcurrentUpdates(t *testing.T) {
	s := New(0)
	sub := s.Subscribe()
	defer sub.Close()
	nextWithin(t, sub)

	const writers = 10
	const perWriter = 100

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				s.Update(j)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < writers*perWriter; i++ {
		nextWithin(t, sub)
	}
}
