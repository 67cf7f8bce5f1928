package sse

import (
	"sync"
)

// AllEmployees subscribes to the events of every employee.
const AllEmployees = "*"

// Event is one ledger change pushed to stream subscribers.
type Event struct {
	EmployeeID string      `json:"employee_id"`
	Event      string      `json:"event"`
	Data       interface{} `json:"data"`
}

// Publisher accepts ledger change events.
type Publisher interface {
	Publish(event Event)
}

// Hub fans events out to subscribers keyed by employee ID.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	buffer      int
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		buffer:      10,
	}
}

// Subscribe registers a subscriber for employeeID (or AllEmployees) and
// returns its channel with a cleanup func that closes it.
func (h *Hub) Subscribe(employeeID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)

	if h.subscribers[employeeID] == nil {
		h.subscribers[employeeID] = make(map[chan Event]struct{})
	}
	h.subscribers[employeeID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[employeeID], ch)
			close(ch)
			if len(h.subscribers[employeeID]) == 0 {
				delete(h.subscribers, employeeID)
			}
		})
	}

	return ch, cleanup
}

// Publish delivers event to the subscribers of its employee and to
// AllEmployees subscribers. Full subscriber buffers drop the event.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, key := range []string{event.EmployeeID, AllEmployees} {
		for ch := range h.subscribers[key] {
			select {
			case ch <- event:
			default:
				// never block a mutation on a slow reader
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers for a key.
func (h *Hub) SubscriberCount(employeeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[employeeID])
}

// TotalSubscribers returns the number of active subscribers across all keys.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
