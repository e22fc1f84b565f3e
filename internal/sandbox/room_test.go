package sandbox

import (
	"sync"
	"testing"
	"time"

	"neuroquest/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// join subscribes a fresh synchronizer to a room on the hub, the same
// wiring the websocket transport performs for remote clients.
func join(hub *realtime.Hub, roomID string, notify Notifier) *Synchronizer {
	s := New(Options{Notifier: notify})
	s.Attach(hub.Subscribe(roomID, s.Identity(), s.Handlers()))
	return s
}

func TestTwoParticipantsConvergeOverHub(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Shutdown()

	silent := func(string) {}
	a := join(hub, "lab", silent)
	b := join(hub, "lab", silent)

	a.AddNode(neuron("n1"))
	a.AddNode(neuron("n2"))
	assert.Eventually(t, func() bool { return len(b.Neurons()) == 2 }, waitFor, tick)

	got := b.Neurons()
	assert.Equal(t, a.Identity(), got[0].Creator)

	b.ConnectNodes("n1", "n2")
	assert.Eventually(t, func() bool {
		ns := a.Neurons()
		return len(ns) == 2 && ns[0].Linked("n2")
	}, waitFor, tick)

	a.RemoveNode("n2")
	assert.Eventually(t, func() bool { return len(b.Neurons()) == 1 }, waitFor, tick)

	b.ClearAll()
	assert.Eventually(t, func() bool { return len(a.Neurons()) == 0 }, waitFor, tick)
}

func TestParticipantsSeeEachOtherButNotThemselves(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Shutdown()

	var mu sync.Mutex
	var toasts []string
	a := join(hub, "lab", func(string) {})
	b := join(hub, "lab", func(m string) {
		mu.Lock()
		defer mu.Unlock()
		toasts = append(toasts, m)
	})

	assert.Eventually(t, func() bool {
		_, ok := a.Participants()[b.Identity()]
		return ok
	}, waitFor, tick)
	assert.Eventually(t, func() bool {
		_, ok := b.Participants()[a.Identity()]
		return ok
	}, waitFor, tick)

	// nobody lists themselves
	_, selfInA := a.Participants()[a.Identity()]
	assert.False(t, selfInA)

	a.Close()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(toasts) >= 1
	}, waitFor, tick)
	assert.Eventually(t, func() bool { return len(b.Participants()) == 0 }, waitFor, tick)
}

func TestLateJoinerCatchesUpViaRequestSync(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Shutdown()

	silent := func(string) {}
	a := join(hub, "lab", silent)
	a.AddNode(neuron("n1"))
	a.AddNode(neuron("n2"))

	// b joined after the adds, so broadcast alone cannot help it
	b := join(hub, "lab", silent)
	require.Empty(t, b.Neurons())

	a.RequestSync()
	assert.Eventually(t, func() bool { return len(b.Neurons()) == 2 }, waitFor, tick)
	assert.Equal(t, int64(1), b.Version())
}

func TestMirrorObservesWithoutParticipating(t *testing.T) {
	hub := realtime.NewHub()
	mirrors := NewMirrors(hub, time.Minute)
	defer mirrors.Shutdown()
	defer hub.Shutdown()

	a := join(hub, "lab", func(string) {})
	mirror := mirrors.Get("lab")
	require.NotNil(t, mirror)

	a.AddNode(neuron("n1"))
	assert.Eventually(t, func() bool { return len(mirror.Neurons()) == 1 }, waitFor, tick)

	// silent mirrors never track presence, so a cannot see them
	assert.Empty(t, a.Participants())

	// Get is idempotent per room
	assert.Same(t, mirror, mirrors.Get("lab"))
}

func TestMirrorNotMintedForEmptyRoom(t *testing.T) {
	hub := realtime.NewHub()
	mirrors := NewMirrors(hub, time.Minute)
	defer mirrors.Shutdown()
	defer hub.Shutdown()

	// mirrors follow rooms; they never create them
	assert.Nil(t, mirrors.Get("ghost"))
	assert.Empty(t, hub.RoomIDs())
}

func TestMirrorReapReleasesIdleRooms(t *testing.T) {
	hub := realtime.NewHub()
	mirrors := NewMirrors(hub, time.Minute)
	defer mirrors.Shutdown()
	defer hub.Shutdown()

	a := join(hub, "lab", func(string) {})
	require.NotNil(t, mirrors.Get("lab"))

	// once the last participant leaves, only the mirror holds the room
	a.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount("lab") == 1 }, waitFor, tick)

	now := time.Now()
	// first pass marks the mirror idle, second is past the timeout
	mirrors.reap(now)
	mirrors.reap(now.Add(2 * time.Minute))

	assert.Zero(t, hub.SubscriberCount("lab"))
	assert.Empty(t, hub.RoomIDs())

	// with the room gone, a later Get mints nothing
	assert.Nil(t, mirrors.Get("lab"))

	// a returning participant makes the room mirrorable again
	b := join(hub, "lab", func(string) {})
	defer b.Close()
	fresh := mirrors.Get("lab")
	assert.NotNil(t, fresh)
	assert.Equal(t, 2, hub.SubscriberCount("lab"))
}
