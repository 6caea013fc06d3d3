package opstatus

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// hub fans StreamEvents out to every connected SSE client. Grounded on the
// teacher dashboard's websocket Hub: the same register/unregister/broadcast
// channel shape, adapted to push raw SSE frames instead of websocket frames.
type hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}

	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte

	logger *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients:    make(map[chan []byte]struct{}),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 256),
		logger:     logger.With("component", "opstatus-hub"),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("client connected", "count", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "count", len(h.clients))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c <- msg:
				default:
					h.logger.Warn("client channel full, dropping event for one client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *hub) broadcastEvent(evt StreamEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", evt.Type)
	}
}
