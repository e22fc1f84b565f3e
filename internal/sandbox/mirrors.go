package sandbox

import (
	"log"
	"sync"
	"time"

	"neuroquest/internal/realtime"
)

// Mirrors keeps one silent Synchronizer subscribed per active room so
// REST consumers can read a room's current circuit. A mirror follows the
// same merge rules as any participant: it is an observer, not an
// authority, and it only ever broadcasts when RequestSync is invoked on
// it explicitly.
type Mirrors struct {
	hub         *realtime.Hub
	idleTimeout time.Duration

	mu     sync.Mutex
	byRoom map[string]*mirror
	done   chan struct{}
	once   sync.Once
}

type mirror struct {
	sync      *Synchronizer
	idleSince time.Time // zero while the room has live participants
}

// NewMirrors creates the registry. idleTimeout bounds how long a mirror
// keeps an otherwise-empty room alive before it is released.
func NewMirrors(hub *realtime.Hub, idleTimeout time.Duration) *Mirrors {
	m := &Mirrors{
		hub:         hub,
		idleTimeout: idleTimeout,
		byRoom:      make(map[string]*mirror),
		done:        make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Get returns the room's mirror, subscribing one on first use. It
// returns nil when the room has no live subscribers: mirrors follow
// rooms, they never create them, so a scanner probing arbitrary ids
// cannot pin empty rooms open.
func (m *Mirrors) Get(roomID string) *Synchronizer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mir, ok := m.byRoom[roomID]; ok {
		return mir.sync
	}
	if m.hub.SubscriberCount(roomID) == 0 {
		return nil
	}

	s := New(Options{Silent: true})
	s.Attach(m.hub.Subscribe(roomID, s.Identity(), s.Handlers()))
	m.byRoom[roomID] = &mirror{sync: s}

	log.Printf("  Mirror attached to room %s", roomID)
	return s
}

// Shutdown detaches every mirror and stops the reaper.
func (m *Mirrors) Shutdown() {
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for roomID, mir := range m.byRoom {
		mir.sync.Close()
		delete(m.byRoom, roomID)
	}
}

// reapLoop releases mirrors that have been the sole subscriber of their
// room past the idle timeout, letting the hub close the room.
func (m *Mirrors) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.reap(now)
		}
	}
}

func (m *Mirrors) reap(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID, mir := range m.byRoom {
		if m.hub.SubscriberCount(roomID) > 1 {
			mir.idleSince = time.Time{}
			continue
		}
		if mir.idleSince.IsZero() {
			mir.idleSince = now
			continue
		}
		if now.Sub(mir.idleSince) >= m.idleTimeout {
			mir.sync.Close()
			delete(m.byRoom, roomID)
			log.Printf("  Mirror released for idle room %s", roomID)
		}
	}
}
