package models

import "encoding/json"

// Point is a 2D canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceRecord is the small payload a participant publishes about itself.
// It is ephemeral: the realtime room holds it only while the participant
// is subscribed, and nothing about it is persisted.
type PresenceRecord struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Cursor   *Point `json:"cursor,omitempty"`
}

// PresenceState maps participant identity to the records published under
// that key. Only the first record per identity is meaningful; the slice
// exists because a key can briefly carry more than one record during
// reconnects.
type PresenceState map[string][]PresenceRecord

// Neuron is one user-placed node in a shared sandbox circuit.
//
// Connections is an ordered, duplicate-free list of target neuron ids.
// Creator is the identity of the participant that added the neuron and
// travels with it so late receivers can attribute it.
type Neuron struct {
	ID          string   `json:"id"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Color       string   `json:"color"`
	Size        float64  `json:"size"`
	Connections []string `json:"connections"`
	Creator     string   `json:"creator"`
}

// Linked reports whether the neuron already connects to the target id.
func (n *Neuron) Linked(targetID string) bool {
	for _, id := range n.Connections {
		if id == targetID {
			return true
		}
	}
	return false
}

// Snapshot is a full copy of a room's neuron list plus an advisory
// version number. The version is a per-sender counter, not a global
// sequence: it only prevents a receiver from regressing to an older
// full-state broadcast.
type Snapshot struct {
	Neurons []Neuron `json:"neurons"`
	Version int64    `json:"version"`
}

// EventKind names the broadcast events a sandbox room carries.
type EventKind string

const (
	EventNodeAdd      EventKind = "node-add"
	EventNodeRemove   EventKind = "node-remove"
	EventNodeLink     EventKind = "node-link"
	EventFullSnapshot EventKind = "full-snapshot"
	EventClearAll     EventKind = "clear-all" // no payload
)

// Event is the tagged union delivered to broadcast handlers. Payload is
// kept raw so the same type rides both the in-process hub and the
// websocket wire; receivers decode it per Kind.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload and wraps it with the kind. Payload may be
// nil for payload-free kinds such as clear-all.
func NewEvent(kind EventKind, payload any) (Event, error) {
	ev := Event{Kind: kind}
	if payload == nil {
		return ev, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	ev.Payload = raw
	return ev, nil
}

// NodeRemovePayload carries the id being removed room-wide.
type NodeRemovePayload struct {
	ID string `json:"id"`
}

// NodeLinkPayload carries one directed connection between two neurons.
type NodeLinkPayload struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}
