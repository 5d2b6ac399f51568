package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)
	require.Equal(t, 2, s.Subscribers())

	evt := Event{ID: "01ABC", EventType: "FAILED_LOGIN", IPAddress: "10.0.0.1"}
	s.Publish(evt)

	for _, ch := range []<-chan Event{a, b} {
		select {
		case got := <-ch:
			require.Equal(t, evt.ID, got.ID)
			require.Equal(t, evt.EventType, got.EventType)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSubscribeUnregistersOnContextDone(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		return s.Subscribers() == 0
	}, time.Second, 10*time.Millisecond)

	// Channel must be closed once the observer is removed.
	_, open := <-ch
	require.False(t, open)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	s := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := s.Subscribe(ctx)

	// Fill the buffer and keep publishing; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(Event{ID: "evt", EventType: "ACTIVE_SESSION"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// Buffered events are still readable up to the channel capacity.
	require.NotZero(t, len(slow))
}

func TestPublishDuringConcurrentDisconnect(t *testing.T) {
	s := New()

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		s.Subscribe(ctx)
		go cancel()
	}
	for i := 0; i < 50; i++ {
		s.Publish(Event{ID: "race", EventType: "REFRESH_USED"})
	}

	require.Eventually(t, func() bool {
		return s.Subscribers() == 0
	}, time.Second, 10*time.Millisecond)
}
