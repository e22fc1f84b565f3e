package api

import (
	"net/http"

	"neuroquest/internal/middleware"
	"neuroquest/internal/realtime"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, ws *realtime.WebSocketHandler) *mux.Router {
	r := mux.NewRouter()

	// Global middleware, in order: tracing, panic recovery, CORS.
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Room endpoints
	api.HandleFunc("/rooms", h.CreateRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}", h.GetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/sync", h.TriggerRoomSync).Methods("POST")
	api.HandleFunc("/rooms/{id}/simulate", h.SimulateRoom).Methods("POST")

	// Saved circuit endpoints
	api.HandleFunc("/circuits", h.SaveCircuit).Methods("POST")
	api.HandleFunc("/circuits", h.ListCircuits).Methods("GET")
	api.HandleFunc("/circuits/{id}", h.GetCircuit).Methods("GET")
	api.HandleFunc("/circuits/{id}", h.DeleteCircuit).Methods("DELETE")

	// Health check endpoint
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// WebSocket route
	r.HandleFunc("/ws/rooms/{id}", ws.HandleRoomConnection)

	return r
}
