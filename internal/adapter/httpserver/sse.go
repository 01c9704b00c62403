package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

const ssePingInterval = 15 * time.Second

// streamEvents writes each event as a data-only SSE frame until the
// subscription channel closes or the client disconnects. A ping event goes
// out whenever the stream has been idle for the keep-alive interval.
func streamEvents(w http.ResponseWriter, r *http.Request, events <-chan domain.Event, unsub func()) {
	defer unsub()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: streaming unsupported", domain.ErrInternal), nil)
		return
	}
	// Clear the per-connection write deadline: the server's WriteTimeout is
	// sized for the bounded endpoints and would sever long streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	send := func(e domain.Event) bool {
		data, err := domain.MarshalEvent(e)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-events:
			if !open {
				return
			}
			if !send(e) {
				return
			}
		case <-ping.C:
			if !send(domain.Ping{}) {
				return
			}
		}
	}
}
