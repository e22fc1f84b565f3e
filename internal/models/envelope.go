package models

import "encoding/json"

// EnvelopeType distinguishes the frames exchanged over a room channel.
type EnvelopeType string

const (
	// EnvelopeBroadcast carries a sandbox Event in both directions.
	EnvelopeBroadcast EnvelopeType = "broadcast"
	// EnvelopePresenceTrack publishes the sender's presence record
	// (client to server only).
	EnvelopePresenceTrack EnvelopeType = "presence_track"
	// EnvelopePresenceState pushes the room's full presence map
	// (server to client only).
	EnvelopePresenceState EnvelopeType = "presence_state"
	// EnvelopePresenceJoin / EnvelopePresenceLeave announce membership
	// changes keyed by participant identity (server to client only).
	EnvelopePresenceJoin  EnvelopeType = "presence_join"
	EnvelopePresenceLeave EnvelopeType = "presence_leave"
)

// Envelope is the single frame format for a room channel, in-process and
// on the websocket wire alike.
type Envelope struct {
	Type    EnvelopeType    `json:"type"`
	Event   EventKind       `json:"event,omitempty"`
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	State   PresenceState   `json:"state,omitempty"`
}
