package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"sync"

	"neuroquest/internal/middleware"
	"neuroquest/internal/models"
	"neuroquest/internal/names"
	"neuroquest/internal/realtime"
	"neuroquest/internal/sandbox"
	"neuroquest/internal/sim"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
)

// Handler handles HTTP requests
type Handler struct {
	hub         *realtime.Hub
	mirrors     *sandbox.Mirrors
	circuitRepo CircuitRepository

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewHandler(hub *realtime.Hub, mirrors *sandbox.Mirrors, circuitRepo CircuitRepository, rng *rand.Rand) *Handler {
	return &Handler{
		hub:         hub,
		mirrors:     mirrors,
		circuitRepo: circuitRepo,
		rng:         rng,
	}
}

// Room handlers

// CreateRoom mints a human-readable room identifier. Rooms are
// namespaces, not resources: nothing is allocated until someone
// subscribes.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	h.rngMu.Lock()
	roomID := names.RoomID(h.rng)
	h.rngMu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"room_id": roomID})
}

// GetRoom reports the room's mirrored circuit and who is present. A
// room nobody has joined reads as empty; no mirror is minted for it.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	neurons := []models.Neuron{}
	participants := map[string]models.PresenceRecord{}
	var version int64
	if mirror := h.mirrors.Get(roomID); mirror != nil {
		neurons = mirror.Neurons()
		participants = mirror.Participants()
		version = mirror.Version()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":      roomID,
		"neurons":      neurons,
		"participants": participants,
		"version":      version,
		"subscribers":  h.hub.SubscriberCount(roomID),
	})
}

// TriggerRoomSync makes the room mirror rebroadcast its state as a
// full snapshot, the coarse reconciliation primitive for clients that
// suspect they diverged. A mirror that has not observed any circuit
// state yet is refused: its empty snapshot would erase the room for
// everyone who applies it.
func (h *Handler) TriggerRoomSync(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	mirror := h.mirrors.Get(roomID)
	if mirror == nil || !mirror.Seeded() {
		http.Error(w, "room mirror holds no circuit state yet", http.StatusConflict)
		return
	}

	mirror.RequestSync()
	w.WriteHeader(http.StatusAccepted)
}

// SimulateRoom runs the propagation model over the room's current
// circuit with the stimulated neuron ids from the request body.
func (h *Handler) SimulateRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	var body struct {
		Stimulate []string `json:"stimulate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, span := middleware.StartSpan(r.Context(), "Sim.Propagate",
		attribute.String("room.id", roomID),
		attribute.Int("stimulated.count", len(body.Stimulate)),
	)
	defer span.End()

	var neurons []models.Neuron
	if mirror := h.mirrors.Get(roomID); mirror != nil {
		neurons = mirror.Neurons()
	}
	result := sim.Propagate(neurons, body.Stimulate)
	writeJSON(w, http.StatusOK, result)
}

// Circuit handlers

// SaveCircuit snapshots the named room's current circuit into Postgres.
func (h *Handler) SaveCircuit(w http.ResponseWriter, r *http.Request) {
	var req models.CircuitCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RoomID == "" || req.Name == "" {
		http.Error(w, "room_id and name are required", http.StatusBadRequest)
		return
	}

	var neurons []models.Neuron
	if mirror := h.mirrors.Get(req.RoomID); mirror != nil {
		neurons = mirror.Neurons()
	}
	circuit := &models.SavedCircuit{
		RoomID:    req.RoomID,
		Name:      req.Name,
		Neurons:   neurons,
		CreatedBy: req.CreatedBy,
	}

	created, err := h.circuitRepo.Create(r.Context(), circuit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListCircuits(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	roomID := r.URL.Query().Get("room_id")

	circuits, err := h.circuitRepo.List(r.Context(), roomID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"circuits": circuits,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handler) GetCircuit(w http.ResponseWriter, r *http.Request) {
	circuit, err := h.circuitRepo.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, circuit)
}

func (h *Handler) DeleteCircuit(w http.ResponseWriter, r *http.Request) {
	if err := h.circuitRepo.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// queryInt parses a non-negative integer query parameter. Anything
// malformed or negative falls back to the default; a negative limit
// would read as "unbounded" further down.
func queryInt(r *http.Request, key string, defaultValue int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}
