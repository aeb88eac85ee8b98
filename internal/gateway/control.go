package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Control message types accepted on /internal/control.
const (
	MsgSkipWaiting = "SKIP_WAITING"
	MsgPrecache    = "PRECACHE_LATEST_DATASETS"
)

const prefetchTimeout = 2 * time.Minute

type controlMessage struct {
	Type string `json:"type"`
}

// offlineReadyEvent carries per-URL prefetch outcomes so the UI can
// surface partial results if it wants to.
type offlineReadyEvent struct {
	Type   string   `json:"type"`
	Cached []string `json:"cached,omitempty"`
	Failed []string `json:"failed,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var msg controlMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid control message", http.StatusBadRequest)
		return
	}

	switch msg.Type {
	case MsgSkipWaiting:
		// the daemon analog of immediate worker activation: sweep every
		// partition now instead of waiting for the next write
		for _, p := range s.store.Partitions() {
			if err := s.store.Evict(p.Name); err != nil {
				s.log.Error().Err(err).Str("partition", p.Name).Msg("eviction sweep failed")
			}
		}
		s.Hub.Broadcast(map[string]string{"type": EventActivated})
		w.WriteHeader(http.StatusNoContent)

	case MsgPrecache:
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), prefetchTimeout)
			defer cancel()

			cached, failed := s.prefetch.Run(ctx)
			s.log.Info().Int("cached", len(cached)).Int("failed", len(failed)).Msg("prefetch complete")
			s.Hub.Broadcast(offlineReadyEvent{Type: EventOfflineReady, Cached: cached, Failed: failed})
		}()
		w.WriteHeader(http.StatusAccepted)

	default:
		http.Error(w, "unknown control message type", http.StatusBadRequest)
	}
}
