package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
)

const (
	streamInterval = time.Second
	writeWait      = 5 * time.Second
)

// Snapshot is the pool state served by /admin/status and its stream.
type Snapshot struct {
	Time    time.Time               `json:"time"`
	Healthy bool                    `json:"healthy"`
	Queued  int                     `json:"queued"`
	Alive   int                     `json:"alive"`
	Workers []dispatch.WorkerStatus `json:"workers"`
}

func snapshot(ops Operator) Snapshot {
	return Snapshot{
		Time:    time.Now().UTC(),
		Healthy: ops.Healthy(),
		Queued:  ops.QueueLen(),
		Alive:   ops.Alive(),
		Workers: ops.Status(),
	}
}

func HandleStatus(ops Operator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, snapshot(ops))
	}
}

// The admin router only listens on an operator address, so any origin may
// open the stream.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HandleStatusStream upgrades to a websocket and sends a Snapshot every
// interval until the client disconnects.
func HandleStatusStream(ops Operator, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered with an HTTP error.
			return
		}
		defer conn.Close()

		// Reading is needed to notice close frames.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshot(ops)); err != nil {
				return
			}
			select {
			case <-ticker.C:
			case <-gone:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
