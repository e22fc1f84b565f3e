package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"neuroquest/internal/middleware"
	"neuroquest/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the NeuroQuest frontend origin once it is pinned
		return true
	},
}

// WebSocketHandler upgrades HTTP requests into room channel sessions.
// Each connection bridges raw JSON envelopes to an in-process subscriber,
// so remote browsers and server-side consumers share the same fan-out
// path.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a websocket front for the hub.
func NewWebSocketHandler(hub *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleRoomConnection joins the websocket client to the room named in
// the path. The client supplies its identity as a query parameter; one
// is minted when it does not, since identity only has to be unique, not
// meaningful.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		identity = uuid.NewString()
	}

	ctx, span := middleware.StartSpan(r.Context(), "WebSocket.Connect",
		attribute.String("room.id", roomID),
		attribute.String("participant.identity", identity),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	client := &wsClient{
		identity: identity,
		roomID:   roomID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	client.channel = h.hub.Subscribe(roomID, identity, client.handlers())

	go client.writePump()
	go client.readPump()

	log.Printf("✓ WebSocket connection established for room %s (identity: %s)", roomID, identity)
}

// wsClient is the bridge between one websocket connection and its room
// subscription: deliveries from the room are encoded onto the socket,
// frames from the socket become Track/Send calls.
type wsClient struct {
	identity string
	roomID   string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{} // closed by the read pump on disconnect
	channel  Channel
}

func (c *wsClient) handlers() Handlers {
	return Handlers{
		OnEvent: func(ev models.Event) {
			c.enqueue(models.Envelope{Type: models.EnvelopeBroadcast, Event: ev.Kind, Payload: ev.Payload})
		},
		OnPresenceSync: func(state models.PresenceState) {
			c.enqueue(models.Envelope{Type: models.EnvelopePresenceState, State: state})
		},
		OnPresenceJoin: func(key string, record models.PresenceRecord) {
			c.enqueue(models.Envelope{Type: models.EnvelopePresenceJoin, Key: key, Payload: marshalRecord(record)})
		},
		OnPresenceLeave: func(key string, record models.PresenceRecord) {
			c.enqueue(models.Envelope{Type: models.EnvelopePresenceLeave, Key: key, Payload: marshalRecord(record)})
		},
	}
}

func (c *wsClient) enqueue(env models.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// write pump backed up; the read pump's exit path cleans up
		log.Printf("⚠️  Dropping frame for slow websocket client %s (room %s)", c.identity, c.roomID)
	}
}

// readPump parses inbound envelopes and forwards them to the channel.
// Unknown frame types are ignored rather than erroring: the protocol is
// fire-and-forget end to end.
func (c *wsClient) readPump() {
	defer func() {
		c.channel.Unsubscribe()
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error (room %s): %v", c.roomID, err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Discarding malformed frame from %s: %v", c.identity, err)
			continue
		}

		switch env.Type {
		case models.EnvelopePresenceTrack:
			var record models.PresenceRecord
			if err := json.Unmarshal(env.Payload, &record); err != nil {
				continue
			}
			record.Identity = c.identity // the socket owns its key
			c.channel.Track(record)
		case models.EnvelopeBroadcast:
			c.channel.Send(models.Event{Kind: env.Event, Payload: env.Payload})
		}
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings. A failed write ends the session; the
// read pump notices the closed connection and unsubscribes.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
