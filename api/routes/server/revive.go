package server

import "net/http"

type reviveResult struct {
	Restarted int `json:"restarted"`
	Attempted int `json:"attempted"`
}

// HandleRevive replaces dead workers.
func HandleRevive(ops Operator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restarted, attempted := ops.Revive(r.Context())
		writeJSON(w, http.StatusOK, reviveResult{Restarted: restarted, Attempted: attempted})
	}
}
