// Package wsevents broadcasts job lifecycle events to connected websocket
// clients: job activated, finished, cancelled, or force-off triggered.
package wsevents

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/itskum47/sprinklerd/internal/observability"
)

// maxConnections caps concurrent event-stream subscribers to bound memory
// use under a connection storm.
const maxConnections = 200

// Event is one job lifecycle notification pushed to subscribers.
type Event struct {
	Type        string  `json:"type"` // job_activated, job_finished, job_cancelled, job_forced_off
	JobID       uint64  `json:"job_id"`
	SprinklerID string  `json:"sprinkler_id"`
	Time        float64 `json:"time"`
}

// Hub fans a single stream of Events out to every connected client. One
// goroutine (Run) owns the client set; everything else communicates with it
// over channels so no mutex is needed on the client map itself.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan Event
	mu         sync.Mutex // guards clients for ClientCount only
}

// NewHub returns an unstarted Hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan Event, 64),
	}
}

// Run services registrations, unregistrations, and outbound events until
// ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("sprinklerd: event stream connection rejected, at capacity (%d)", maxConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedEventClients.Set(float64(n))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedEventClients.Set(float64(n))

		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("sprinklerd: failed to marshal event: %v", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("sprinklerd: event stream write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	observability.ConnectedEventClients.Set(0)
}

// Register enrolls conn to receive published events. Safe to call from any
// goroutine (e.g. the HTTP handler accepting the websocket upgrade).
func (h *Hub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister removes and closes conn.
func (h *Hub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

// Publish enqueues an event for broadcast. Non-blocking: a full buffer
// drops the event rather than stalling the caller, since event delivery is
// best-effort and never gates scheduling decisions.
func (h *Hub) Publish(ev Event) {
	select {
	case h.events <- ev:
	default:
		log.Printf("sprinklerd: event stream buffer full, dropping %s event for job %d", ev.Type, ev.JobID)
	}
}

// PublishLifecycle builds and publishes a job lifecycle Event. It satisfies
// queue.EventSink, keeping the scheduling core free of a direct dependency
// on the websocket library.
func (h *Hub) PublishLifecycle(eventType string, jobID uint64, sprinklerID string, at time.Time) {
	h.Publish(Event{
		Type:        eventType,
		JobID:       jobID,
		SprinklerID: sprinklerID,
		Time:        float64(at.UnixNano()) / float64(time.Second),
	})
}

// ClientCount returns the number of currently connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
