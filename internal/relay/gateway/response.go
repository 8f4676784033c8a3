package gateway

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v with the given status and records the ingest
// outcome.
func (h *Handler) writeJSON(w http.ResponseWriter, endpoint string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)

	h.registry.RecordIngest(endpoint, status)
}

// writeMessage writes the standard message-only envelope.
func (h *Handler) writeMessage(w http.ResponseWriter, endpoint string, status int, message string) {
	h.writeJSON(w, endpoint, status, map[string]any{"message": message})
}
