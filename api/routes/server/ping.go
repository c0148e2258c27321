package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
)

// MaxPings caps the count parameter of /admin/ping.
const MaxPings = 100

// PingReport is the outcome of pinging one connection count times.
type PingReport struct {
	Name string `json:"name"`
	// RTTs are round trip times in milliseconds.
	RTTs    []float64 `json:"rtts"`
	Average float64   `json:"average"`
	Errors  []string  `json:"errors,omitempty"`
}

// PingAll pings every connection of ops count times.
func PingAll(ctx context.Context, ops Operator, count int) []PingReport {
	var order []string
	byName := map[string]*PingReport{}
	for i := 0; i < count; i++ {
		for _, res := range ops.Ping(ctx) {
			rep, ok := byName[res.Name]
			if !ok {
				rep = &PingReport{Name: res.Name}
				byName[res.Name] = rep
				order = append(order, res.Name)
			}
			record(rep, res)
		}
	}
	out := make([]PingReport, len(order))
	for i, name := range order {
		rep := byName[name]
		if n := len(rep.RTTs); n > 0 {
			sum := 0.0
			for _, rtt := range rep.RTTs {
				sum += rtt
			}
			rep.Average = sum / float64(n)
		}
		out[i] = *rep
	}
	return out
}

func record(rep *PingReport, res dispatch.PingResult) {
	if res.Err != nil {
		rep.Errors = append(rep.Errors, res.Err.Error())
		return
	}
	rep.RTTs = append(rep.RTTs, float64(res.RTT)/float64(time.Millisecond))
}

// HandlePing pings every connection ?count=N times (default 1).
func HandlePing(ops Operator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := 1
		if s := r.URL.Query().Get("count"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > MaxPings {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "count must be a number from 1 to " + strconv.Itoa(MaxPings),
				})
				return
			}
			count = n
		}
		writeJSON(w, http.StatusOK, PingAll(r.Context(), ops, count))
	}
}
