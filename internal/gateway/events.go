package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Event types broadcast to subscribed clients.
const (
	EventOfflineReady = "OFFLINE_READY"
	EventActivated    = "ACTIVATED"
)

// Hub fans events out to every subscribed client over server-sent
// events. Slow subscribers drop events rather than block the sender.
type Hub struct {
	log zerolog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{log: log, subs: map[chan []byte]struct{}{}}
}

// Subscribe registers a new client. The returned cancel function must
// be called when the client goes away.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// Broadcast JSON-encodes event and delivers it to every subscriber.
func (h *Hub) Broadcast(event any) {
	b, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("encode broadcast event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
			h.log.Warn().Msg("dropping event for slow subscriber")
		}
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, cancel := h.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
