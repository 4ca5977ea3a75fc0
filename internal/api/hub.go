package api

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/flightops/ruled/pkg/engine"
)

// eventHub fans out engine.Event rule-match notifications to every
// connected /ws/events client. Broadcast is called from the driver
// thread via the dispatcher's observer hook and must never block it, so
// each client gets its own bounded outbound queue and a slow client is
// dropped rather than stalling the engine.
type eventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	logger  *log.Logger
}

func newEventHub(logger *log.Logger) *eventHub {
	return &eventHub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger,
	}
}

func (h *eventHub) add(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// broadcast is the engine.Observer wired into the Dispatcher.
func (h *eventHub) broadcast(ev engine.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			h.logf("api: event client slow, dropping connection")
			close(ch)
			delete(h.clients, conn)
		}
	}
}

func (h *eventHub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
