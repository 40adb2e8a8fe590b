package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalBus_DeliversSynchronously(t *testing.T) {
	bus := NewLocalBus()
	var got []Event
	bus.Subscribe(func(ev Event) { got = append(got, ev) })
	bus.Subscribe(func(ev Event) { got = append(got, ev) })

	err := bus.Publish(context.Background(), MembershipChanged("set_user_groups", "u1", "u2"))

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, KindMembership, got[0].Kind)
	assert.Equal(t, []string{"u1", "u2"}, got[0].UserIDs)
}

func TestLocalBus_PurgeAll(t *testing.T) {
	bus := NewLocalBus()
	var kinds []string
	bus.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	_ = bus.Publish(context.Background(), PurgeAll("delete_group"))

	assert.Equal(t, []string{KindPurge}, kinds)
}
