// Package realtime is the channel service behind the collaborative
// sandbox: named rooms, presence tracking keyed by participant identity,
// and fire-and-forget broadcast fan-out that never re-delivers a
// subscriber's own events.
package realtime

import "neuroquest/internal/models"

// Handlers are the callbacks a subscriber registers before joining a
// room. Any of them may be nil.
type Handlers struct {
	// OnEvent receives broadcast events sent by other subscribers.
	OnEvent func(models.Event)
	// OnPresenceSync receives the room's full presence map whenever it
	// changes, the subscriber's own entry included. Consumers filter
	// out their own key.
	OnPresenceSync func(models.PresenceState)
	// OnPresenceJoin fires when another subscriber first tracks its
	// presence record.
	OnPresenceJoin func(key string, record models.PresenceRecord)
	// OnPresenceLeave fires when a subscriber that had tracked presence
	// leaves the room.
	OnPresenceLeave func(key string, record models.PresenceRecord)
}

// Channel is one participant's handle on a room. All methods are
// fire-and-forget: delivery is at-most-once, unordered, and restricted
// to currently subscribed participants.
type Channel interface {
	// Track publishes or replaces the caller's presence record.
	Track(record models.PresenceRecord) error
	// Send broadcasts an event to every other subscriber in the room.
	Send(event models.Event) error
	// Unsubscribe leaves the room. After it returns no further events
	// are delivered or accepted; calling it twice is safe.
	Unsubscribe()
}
