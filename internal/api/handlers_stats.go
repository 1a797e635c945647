package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleImageStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sessions": s.sessions.Count(),
		"stats":    s.sessions.ImageStats(),
	})
}
