package server

import (
	"encoding/json"
	"net/http"
)

type health struct {
	Status string `json:"status"`
	Alive  int    `json:"aliveWorkers"`
}

// HandleHealth reports the latest liveness check: 200 when the database
// answered, 503 otherwise.
func HandleHealth(ops Operator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := health{Status: "healthy", Alive: ops.Alive()}
		status := http.StatusOK
		if !ops.Healthy() {
			h.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
