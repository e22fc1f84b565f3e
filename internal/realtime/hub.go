package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"neuroquest/internal/models"
)

// sendBuffer is the per-subscriber delivery queue depth. A subscriber
// that stays this far behind is considered dead and gets evicted, the
// same policy the rest of the fan-out path assumes.
const sendBuffer = 256

// Hub is the registry of active sandbox rooms. Rooms are created on
// first subscribe and dropped when the last subscriber leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// Subscribe joins the named room under the given presence key and
// returns the caller's channel handle. Handlers start receiving as soon
// as this returns; the caller has not tracked presence yet and is
// invisible to others until it does.
func (h *Hub) Subscribe(roomID, key string, handlers Handlers) Channel {
	room := h.getOrCreate(roomID)
	return room.subscribe(key, handlers)
}

// SubscriberCount reports how many channels are open on a room. Zero
// means the room does not exist.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.subs)
}

// RoomIDs lists the currently active rooms.
func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown unsubscribes every channel in every room.
func (h *Hub) Shutdown() {
	log.Println("🛑 Shutting down realtime hub...")

	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()

	for _, room := range rooms {
		for _, s := range room.subscribers() {
			s.Unsubscribe()
		}
	}

	log.Println("✓ Realtime hub shutdown complete")
}

func (h *Hub) getOrCreate(roomID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[roomID]; ok {
		return room
	}
	room := &Room{
		id:       roomID,
		hub:      h,
		subs:     make(map[*subscriber]struct{}),
		presence: make(map[string]models.PresenceRecord),
	}
	h.rooms[roomID] = room
	log.Printf("  Room %s opened", roomID)
	return room
}

func (h *Hub) removeIfEmpty(room *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room.mu.RLock()
	empty := len(room.subs) == 0
	room.mu.RUnlock()
	if empty && h.rooms[room.id] == room {
		delete(h.rooms, room.id)
		log.Printf("  Room %s closed (no subscribers left)", room.id)
	}
}

// Room holds one collaborative session: its subscriber set and the
// presence records tracked under it. All of it is in-memory; a room
// vanishes with its last subscriber.
type Room struct {
	id  string
	hub *Hub

	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	presence map[string]models.PresenceRecord
}

func (r *Room) subscribe(key string, handlers Handlers) *subscriber {
	s := &subscriber{
		key:        key,
		room:       r,
		handlers:   handlers,
		deliveries: make(chan models.Envelope, sendBuffer),
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	r.subs[s] = struct{}{}
	total := len(r.subs)
	r.mu.Unlock()

	go s.pump()

	log.Printf("  Subscriber %s joined room %s (total: %d)", key, r.id, total)
	return s
}

// track stores the record, announces a first-time join to the others,
// and pushes the updated presence map to everyone.
func (r *Room) track(s *subscriber, record models.PresenceRecord) {
	r.mu.Lock()
	_, rejoin := r.presence[s.key]
	r.presence[s.key] = record
	state := r.presenceStateLocked()
	r.mu.Unlock()

	if !rejoin {
		r.fanOut(models.Envelope{
			Type:    models.EnvelopePresenceJoin,
			Key:     s.key,
			Payload: marshalRecord(record),
		}, s)
	}
	r.fanOut(models.Envelope{Type: models.EnvelopePresenceState, State: state}, nil)
}

// broadcast fans an event out to every subscriber except the sender.
func (r *Room) broadcast(env models.Envelope, sender *subscriber) {
	r.fanOut(env, sender)
}

// remove detaches the subscriber and, if it had tracked presence,
// announces the leave and re-syncs the survivors.
func (r *Room) remove(s *subscriber) {
	r.mu.Lock()
	if _, ok := r.subs[s]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.subs, s)
	record, tracked := r.presence[s.key]
	delete(r.presence, s.key)
	state := r.presenceStateLocked()
	remaining := len(r.subs)
	r.mu.Unlock()

	log.Printf("  Subscriber %s left room %s (remaining: %d)", s.key, r.id, remaining)

	if tracked {
		r.fanOut(models.Envelope{
			Type:    models.EnvelopePresenceLeave,
			Key:     s.key,
			Payload: marshalRecord(record),
		}, nil)
		r.fanOut(models.Envelope{Type: models.EnvelopePresenceState, State: state}, nil)
	}

	r.hub.removeIfEmpty(r)
}

// fanOut delivers without blocking. A subscriber whose queue is full is
// slow or dead; it gets evicted off this goroutine, exactly like a
// websocket client whose write buffer backed up.
func (r *Room) fanOut(env models.Envelope, skip *subscriber) {
	for _, s := range r.subscribers() {
		if s == skip {
			continue
		}
		select {
		case s.deliveries <- env:
		case <-s.done:
		default:
			log.Printf("⚠️  Subscriber %s in room %s is not draining, evicting", s.key, r.id)
			go s.Unsubscribe()
		}
	}
}

func (r *Room) subscribers() []*subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*subscriber, 0, len(r.subs))
	for s := range r.subs {
		out = append(out, s)
	}
	return out
}

// presenceStateLocked snapshots the presence map. Records ride in
// single-element slices because a key may transiently hold several
// during a reconnect; consumers use the first.
func (r *Room) presenceStateLocked() models.PresenceState {
	state := make(models.PresenceState, len(r.presence))
	for key, record := range r.presence {
		state[key] = []models.PresenceRecord{record}
	}
	return state
}

func marshalRecord(record models.PresenceRecord) json.RawMessage {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	return raw
}

// subscriber is the in-process implementation of Channel. Each one owns
// a pump goroutine so a slow handler never blocks the room's fan-out.
type subscriber struct {
	key        string
	room       *Room
	handlers   Handlers
	deliveries chan models.Envelope
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *subscriber) Track(record models.PresenceRecord) error {
	select {
	case <-s.done:
		return nil // already left; fire-and-forget semantics
	default:
	}
	s.room.track(s, record)
	return nil
}

func (s *subscriber) Send(event models.Event) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	s.room.broadcast(models.Envelope{
		Type:    models.EnvelopeBroadcast,
		Event:   event.Kind,
		Key:     s.key,
		Payload: event.Payload,
	}, s)
	return nil
}

func (s *subscriber) Unsubscribe() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.room.remove(s)
	})
}

// pump drains deliveries and invokes the registered handlers one at a
// time, preserving per-subscriber ordering of whatever the room handed
// us (the transport itself promises none).
func (s *subscriber) pump() {
	for {
		select {
		case <-s.done:
			return
		case env := <-s.deliveries:
			s.dispatch(env)
		}
	}
}

func (s *subscriber) dispatch(env models.Envelope) {
	switch env.Type {
	case models.EnvelopeBroadcast:
		if s.handlers.OnEvent != nil {
			s.handlers.OnEvent(models.Event{Kind: env.Event, Payload: env.Payload})
		}
	case models.EnvelopePresenceState:
		if s.handlers.OnPresenceSync != nil {
			s.handlers.OnPresenceSync(env.State)
		}
	case models.EnvelopePresenceJoin:
		if s.handlers.OnPresenceJoin != nil {
			s.handlers.OnPresenceJoin(env.Key, unmarshalRecord(env.Payload))
		}
	case models.EnvelopePresenceLeave:
		if s.handlers.OnPresenceLeave != nil {
			s.handlers.OnPresenceLeave(env.Key, unmarshalRecord(env.Payload))
		}
	}
}

func unmarshalRecord(raw json.RawMessage) models.PresenceRecord {
	var record models.PresenceRecord
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &record)
	}
	return record
}
