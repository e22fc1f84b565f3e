package realtime

import (
	"sync"
	"testing"
	"time"

	"neuroquest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects everything delivered to a subscriber.
type recorder struct {
	mu     sync.Mutex
	events []models.Event
	syncs  []models.PresenceState
	joins  []string
	leaves []string
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnEvent: func(ev models.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		},
		OnPresenceSync: func(state models.PresenceState) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.syncs = append(r.syncs, state)
		},
		OnPresenceJoin: func(key string, _ models.PresenceRecord) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.joins = append(r.joins, key)
		},
		OnPresenceLeave: func(key string, _ models.PresenceRecord) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.leaves = append(r.leaves, key)
		},
	}
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) joinCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.joins)
}

func (r *recorder) leaveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leaves)
}

func (r *recorder) lastSync() (models.PresenceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.syncs) == 0 {
		return nil, false
	}
	return r.syncs[len(r.syncs)-1], true
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	var sender, other recorder
	chSender := hub.Subscribe("room-1", "a", sender.handlers())
	hub.Subscribe("room-1", "b", other.handlers())

	ev, err := models.NewEvent(models.EventNodeAdd, models.Neuron{ID: "n1"})
	require.NoError(t, err)
	require.NoError(t, chSender.Send(ev))

	assert.Eventually(t, func() bool { return other.eventCount() == 1 }, waitFor, tick)
	assert.Zero(t, sender.eventCount(), "sender must not re-receive its own broadcast")
}

func TestPresenceTrackJoinSyncLeave(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	var a, b recorder
	chA := hub.Subscribe("room-1", "a", a.handlers())
	hub.Subscribe("room-1", "b", b.handlers())

	require.NoError(t, chA.Track(models.PresenceRecord{Identity: "a", Name: "Curious Axon"}))

	// b sees the join and both see the updated presence map
	assert.Eventually(t, func() bool { return b.joinCount() == 1 }, waitFor, tick)
	assert.Eventually(t, func() bool {
		state, ok := b.lastSync()
		return ok && len(state["a"]) == 1 && state["a"][0].Name == "Curious Axon"
	}, waitFor, tick)

	// re-tracking (cursor moves) must not re-announce a join
	require.NoError(t, chA.Track(models.PresenceRecord{Identity: "a", Name: "Curious Axon", Cursor: &models.Point{X: 1, Y: 2}}))
	assert.Eventually(t, func() bool {
		state, ok := b.lastSync()
		return ok && state["a"][0].Cursor != nil
	}, waitFor, tick)
	assert.Equal(t, 1, b.joinCount())

	chA.Unsubscribe()
	assert.Eventually(t, func() bool { return b.leaveCount() == 1 }, waitFor, tick)
}

func TestUntrackedSubscriberLeavesSilently(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	var a, b recorder
	chA := hub.Subscribe("room-1", "a", a.handlers())
	hub.Subscribe("room-1", "b", b.handlers())

	// a never tracked presence, so nobody is told it left
	chA.Unsubscribe()

	assert.Eventually(t, func() bool { return hub.SubscriberCount("room-1") == 1 }, waitFor, tick)
	assert.Zero(t, b.leaveCount())
}

func TestRoomClosesWhenEmpty(t *testing.T) {
	hub := NewHub()

	var a recorder
	ch := hub.Subscribe("room-1", "a", a.handlers())
	require.Equal(t, 1, hub.SubscriberCount("room-1"))
	require.Equal(t, []string{"room-1"}, hub.RoomIDs())

	ch.Unsubscribe()
	ch.Unsubscribe() // second call is a no-op

	assert.Zero(t, hub.SubscriberCount("room-1"))
	assert.Empty(t, hub.RoomIDs())
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	var a, b recorder
	chA := hub.Subscribe("room-1", "a", a.handlers())
	hub.Subscribe("room-2", "b", b.handlers())

	ev, err := models.NewEvent(models.EventClearAll, nil)
	require.NoError(t, err)
	require.NoError(t, chA.Send(ev))

	// give fan-out a moment; the other room must stay quiet
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, b.eventCount())
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	// the slow subscriber's pump stalls on its first delivery until the
	// test releases it, so the delivery queue behind it can fill up
	block := make(chan struct{})
	defer close(block)
	hub.Subscribe("room-1", "slow", Handlers{
		OnEvent: func(models.Event) { <-block },
	})

	var fast recorder
	chFast := hub.Subscribe("room-1", "fast", fast.handlers())
	require.Equal(t, 2, hub.SubscriberCount("room-1"))

	ev, err := models.NewEvent(models.EventNodeAdd, models.Neuron{ID: "n1"})
	require.NoError(t, err)
	for i := 0; i < sendBuffer+2; i++ {
		require.NoError(t, chFast.Send(ev))
	}

	// the stalled subscriber is treated as dead and dropped; the sender
	// stays subscribed
	assert.Eventually(t, func() bool { return hub.SubscriberCount("room-1") == 1 }, waitFor, tick)
	require.NoError(t, chFast.Send(ev))
	assert.Equal(t, 1, hub.SubscriberCount("room-1"))
}

func TestSendAfterUnsubscribeIsNoop(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	var a, b recorder
	chA := hub.Subscribe("room-1", "a", a.handlers())
	hub.Subscribe("room-1", "b", b.handlers())

	chA.Unsubscribe()

	ev, err := models.NewEvent(models.EventClearAll, nil)
	require.NoError(t, err)
	assert.NoError(t, chA.Send(ev))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, b.eventCount())
}
