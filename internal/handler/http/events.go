package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

const defaultKeepalive = 30 * time.Second

// EventsHandler streams ledger changes as server-sent events.
type EventsHandler interface {
	Stream(w http.ResponseWriter, r *http.Request)
}

type eventsHandlerImpl struct {
	hub       *sse.Hub
	keepalive time.Duration
}

// NewEventsHandler creates a stream handler over hub. A non-positive
// keepalive falls back to 30 seconds.
func NewEventsHandler(hub *sse.Hub, keepalive time.Duration) EventsHandler {
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	return &eventsHandlerImpl{hub: hub, keepalive: keepalive}
}

// Stream subscribes to one employee's changes, or to every employee when
// the route has no employeeID.
func (h *eventsHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	if employeeID == "" {
		employeeID = sse.AllEmployees
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(employeeID)
	defer cleanup()

	connected, _ := json.Marshal(map[string]string{"status": "connected", "employee_id": employeeID})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
