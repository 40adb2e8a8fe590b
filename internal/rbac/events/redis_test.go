package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisBusTest(t *testing.T) (*miniredis.Miniredis, func() *RedisBus) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	newBus := func() *RedisBus {
		client, err := NewRedisClient("redis://" + mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		bus, err := NewRedisBus(context.Background(), client, "test:invalidate", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = bus.Close() })
		return bus
	}
	return mr, newBus
}

func TestRedisBus_RelaysToPeers(t *testing.T) {
	_, newBus := setupRedisBusTest(t)
	a := newBus()
	b := newBus()

	received := make(chan Event, 4)
	b.Subscribe(func(ev Event) { received <- ev })

	var localCount int
	a.Subscribe(func(ev Event) { localCount++ })

	require.NoError(t, a.Publish(context.Background(), MembershipChanged("set_user_groups", "u1")))

	select {
	case ev := <-received:
		assert.Equal(t, KindMembership, ev.Kind)
		assert.Equal(t, []string{"u1"}, ev.UserIDs)
		assert.NotEmpty(t, ev.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not receive the event")
	}

	// The publisher sees its own event exactly once, from local delivery.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, localCount)
}

func TestRedisBus_PublishFailureStillDeliversLocally(t *testing.T) {
	mr, newBus := setupRedisBusTest(t)
	bus := newBus()

	var delivered bool
	bus.Subscribe(func(ev Event) { delivered = true })

	mr.Close()
	err := bus.Publish(context.Background(), PurgeAll("update_permission"))

	assert.Error(t, err)
	assert.True(t, delivered)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("://bad")
	assert.Error(t, err)
}
