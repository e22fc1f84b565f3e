// Package sandbox implements the collaborative circuit sandbox: every
// participant in a room keeps an optimistic local copy of the shared
// neuron graph and reconciles it with the others purely through
// broadcast events and presence records. There is no server-side
// authority and no durable state; whatever a client cannot rebuild from
// the room's traffic is gone.
package sandbox

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"neuroquest/internal/models"
	"neuroquest/internal/names"
	"neuroquest/internal/realtime"

	"github.com/google/uuid"
)

// Notifier surfaces informational participant messages (the frontend
// renders them as toasts). It is never used for errors: every network
// operation here is fire-and-forget.
type Notifier func(message string)

// Options configures a Synchronizer. The zero value is usable: identity,
// name, and color are minted from a time-seeded generator and
// notifications go to the log.
type Options struct {
	// Identity overrides the generated participant identity.
	Identity string
	// Rng seeds name and color selection; nil means time-seeded.
	Rng *rand.Rand
	// Notifier receives join/leave messages; nil means log.Printf.
	Notifier Notifier
	// Silent suppresses presence tracking on Attach. Server-side room
	// mirrors set this so they observe without appearing as
	// participants.
	Silent bool
}

// Synchronizer is one participant's view of a shared sandbox room. All
// mutation, local operations and received events alike, funnels through
// a single mutex-guarded state so tests can inject synthetic events with
// Apply and never need a live channel.
type Synchronizer struct {
	self   models.PresenceRecord
	silent bool
	notify Notifier

	mu           sync.Mutex
	channel      realtime.Channel
	neurons      []models.Neuron
	participants map[string]models.PresenceRecord

	// version is the advisory snapshot counter: it is bumped on every
	// snapshot this participant sends and raised to any strictly newer
	// snapshot it applies. It orders successive full-state broadcasts
	// and nothing else; individual add/remove/link events are
	// reconciled only by their own idempotence.
	version int64
}

// New creates a detached Synchronizer. It does nothing on the network
// until Attach hands it a channel.
func New(opts Options) *Synchronizer {
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	identity := opts.Identity
	if identity == "" {
		identity = uuid.NewString()
	}
	notify := opts.Notifier
	if notify == nil {
		notify = func(message string) { log.Printf("  [sandbox] %s", message) }
	}

	return &Synchronizer{
		self: models.PresenceRecord{
			Identity: identity,
			Name:     names.DisplayName(rng),
			Color:    names.CursorColor(rng),
		},
		silent:       opts.Silent,
		notify:       notify,
		participants: make(map[string]models.PresenceRecord),
	}
}

// Handlers returns the callback set to register when subscribing this
// participant to a room.
func (s *Synchronizer) Handlers() realtime.Handlers {
	return realtime.Handlers{
		OnEvent:         s.Apply,
		OnPresenceSync:  s.applyPresenceSync,
		OnPresenceJoin:  s.announceJoin,
		OnPresenceLeave: s.announceLeave,
	}
}

// Attach binds the subscribed channel and publishes this participant's
// presence record with a null cursor. Until Attach is called every
// network-effecting operation silently no-ops.
func (s *Synchronizer) Attach(ch realtime.Channel) {
	s.mu.Lock()
	s.channel = ch
	record := s.self
	s.mu.Unlock()

	if ch != nil && !s.silent {
		ch.Track(record)
	}
}

// Close unsubscribes from the room. Later operations no-op; state is
// retained for inspection but will never change again.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Unsubscribe()
	}
}

// Identity returns this participant's opaque identity string.
func (s *Synchronizer) Identity() string { return s.self.Identity }

// Self returns this participant's presence record as last published.
func (s *Synchronizer) Self() models.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// Neurons returns a copy of the local neuron list.
func (s *Synchronizer) Neurons() []models.Neuron {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Neuron, len(s.neurons))
	copy(out, s.neurons)
	return out
}

// Participants returns a copy of the remote participant map (self is
// never in it).
func (s *Synchronizer) Participants() map[string]models.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.PresenceRecord, len(s.participants))
	for k, v := range s.participants {
		out[k] = v
	}
	return out
}

// Version returns the last sent or applied snapshot version.
func (s *Synchronizer) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Seeded reports whether this participant holds any circuit state worth
// sharing: a non-empty node list or a snapshot version it has sent or
// applied. A late joiner that has observed nothing is not seeded, and
// pushing its empty list as a snapshot would wipe the room.
func (s *Synchronizer) Seeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.neurons) > 0 || s.version > 0
}

// UpdateCursor republishes the presence record with a new cursor
// position. Cursors are a remote-only concept: nothing local changes.
func (s *Synchronizer) UpdateCursor(x, y float64) {
	s.mu.Lock()
	s.self.Cursor = &models.Point{X: x, Y: y}
	record := s.self
	ch := s.channel
	s.mu.Unlock()

	if ch != nil {
		ch.Track(record)
	}
}

// AddNode appends the neuron locally and broadcasts it, stamped with
// this participant's identity as creator. The id is caller-supplied and
// not checked for collisions; receivers keep whichever content they saw
// first for a given id.
func (s *Synchronizer) AddNode(n models.Neuron) {
	n.Creator = s.self.Identity
	n.Connections = dedupeLinks(n.Connections)

	s.mu.Lock()
	s.neurons = append(s.neurons, n)
	ch := s.channel
	s.mu.Unlock()

	s.send(ch, models.EventNodeAdd, n)
}

// RemoveNode filters the id out of the local list and broadcasts the
// removal. A nonexistent id is a no-op everywhere.
func (s *Synchronizer) RemoveNode(id string) {
	s.mu.Lock()
	s.neurons = removeByID(s.neurons, id)
	ch := s.channel
	s.mu.Unlock()

	s.send(ch, models.EventNodeRemove, models.NodeRemovePayload{ID: id})
}

// ConnectNodes appends toID to fromID's connection list and broadcasts
// the link. It is a complete no-op, local and network, when fromID is
// not present locally or the link already exists.
func (s *Synchronizer) ConnectNodes(fromID, toID string) {
	s.mu.Lock()
	linked := linkNodes(s.neurons, fromID, toID)
	ch := s.channel
	s.mu.Unlock()

	if !linked {
		return
	}
	s.send(ch, models.EventNodeLink, models.NodeLinkPayload{FromID: fromID, ToID: toID})
}

// ClearAll empties the local list and broadcasts the wipe. There is no
// confirmation and no undo at this layer.
func (s *Synchronizer) ClearAll() {
	s.mu.Lock()
	s.neurons = nil
	ch := s.channel
	s.mu.Unlock()

	s.send(ch, models.EventClearAll, nil)
}

// RequestSync bumps the local version counter and broadcasts this
// participant's full node list as a snapshot. Despite the name it pushes
// the caller's own state outward; the receivers' version gates decide
// whether it applies. It is a coarse reconciliation primitive, not a
// request/response protocol.
func (s *Synchronizer) RequestSync() {
	s.mu.Lock()
	s.version++
	snap := models.Snapshot{Neurons: make([]models.Neuron, len(s.neurons)), Version: s.version}
	copy(snap.Neurons, s.neurons)
	ch := s.channel
	s.mu.Unlock()

	s.send(ch, models.EventFullSnapshot, snap)
}

// Apply is the single entry point for broadcast events, from the live
// channel or synthesized by tests. Malformed payloads are discarded;
// the transport is best-effort and so is decoding.
func (s *Synchronizer) Apply(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case models.EventNodeAdd:
		var n models.Neuron
		if json.Unmarshal(ev.Payload, &n) != nil {
			return
		}
		// idempotent: first-seen content for an id wins
		for i := range s.neurons {
			if s.neurons[i].ID == n.ID {
				return
			}
		}
		n.Connections = dedupeLinks(n.Connections)
		s.neurons = append(s.neurons, n)

	case models.EventNodeRemove:
		var p models.NodeRemovePayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.neurons = removeByID(s.neurons, p.ID)

	case models.EventNodeLink:
		var p models.NodeLinkPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		linkNodes(s.neurons, p.FromID, p.ToID)

	case models.EventFullSnapshot:
		var snap models.Snapshot
		if json.Unmarshal(ev.Payload, &snap) != nil {
			return
		}
		// stale or duplicate snapshots are discarded
		if snap.Version <= s.version {
			return
		}
		s.neurons = snap.Neurons
		s.version = snap.Version

	case models.EventClearAll:
		// unconditional: clear-all ignores version state entirely
		s.neurons = nil
	}
}

// send broadcasts fire-and-forget; a nil channel (not yet attached, or
// closed) suppresses the send silently per the component's failure
// semantics.
func (s *Synchronizer) send(ch realtime.Channel, kind models.EventKind, payload any) {
	if ch == nil {
		return
	}
	ev, err := models.NewEvent(kind, payload)
	if err != nil {
		return
	}
	ch.Send(ev)
}

// applyPresenceSync rebuilds the participant map from the room's full
// presence state, dropping self and taking the first record per key.
func (s *Synchronizer) applyPresenceSync(state models.PresenceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants = make(map[string]models.PresenceRecord, len(state))
	for key, records := range state {
		if key == s.self.Identity || len(records) == 0 {
			continue
		}
		record := records[0]
		record.Identity = key
		if record.Name == "" {
			record.Name = "Anonymous"
		}
		if record.Color == "" {
			record.Color = names.DefaultColor()
		}
		s.participants[key] = record
	}
}

func (s *Synchronizer) announceJoin(key string, record models.PresenceRecord) {
	if key == s.self.Identity {
		return
	}
	s.notify(fmt.Sprintf("%s joined the sandbox", nameOrSomeone(record)))
}

func (s *Synchronizer) announceLeave(key string, record models.PresenceRecord) {
	if key == s.self.Identity {
		return
	}
	s.notify(fmt.Sprintf("%s left the sandbox", nameOrSomeone(record)))
}

func nameOrSomeone(record models.PresenceRecord) string {
	if record.Name == "" {
		return "Someone"
	}
	return record.Name
}

func removeByID(neurons []models.Neuron, id string) []models.Neuron {
	out := neurons[:0]
	for _, n := range neurons {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// dedupeLinks normalizes a node's connection list on ingest: the link
// set is duplicate-free, and callers may hand us anything. nil becomes
// an empty list; first-seen order is kept.
func dedupeLinks(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// linkNodes appends toID to fromID's connections if the node exists and
// the link is absent. It reports whether anything changed.
func linkNodes(neurons []models.Neuron, fromID, toID string) bool {
	for i := range neurons {
		if neurons[i].ID != fromID {
			continue
		}
		if neurons[i].Linked(toID) {
			return false
		}
		neurons[i].Connections = append(neurons[i].Connections, toID)
		return true
	}
	return false
}
