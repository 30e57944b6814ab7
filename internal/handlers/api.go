// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"net/http"
)

// PingHandler answers health probes.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// RoomsHandler lists the seeded rooms with their current table occupancy so
// clients can pick a room to join over the websocket.
func RoomsHandler(s *TableServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		out := make([]map[string]interface{}, 0, len(s.Rooms))
		for _, room := range s.Rooms {
			out = append(out, room.Snapshot())
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			s.Log.WithError(err).Warn("rooms listing encode failed")
		}
	}
}
