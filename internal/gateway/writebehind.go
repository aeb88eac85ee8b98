package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/krishimitra/offline-gateway/internal/queue"
)

// queuedAck is the acknowledgement contract the app UI handles when an
// advice submission cannot reach the backend.
type queuedAck struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

const queuedMessage = "You are offline. Your advice will be sent when back online."

// serveAdvice forwards the advice submission and converts a transport
// failure into a durable enqueue plus a 202 acknowledgement. The caller
// never sees a hard failure on this route.
func (s *Server) serveAdvice(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	e, err := fetchOrigin(r.Context(), s.client, s.origin, r.Method, r.URL.RequestURI(), r.Header, body)
	if err == nil {
		writeEntry(w, e, "")
		return
	}

	qr := &queue.Request{
		Method: r.Method,
		URL:    r.URL.RequestURI(),
		Header: cloneHeader(r.Header),
		Body:   body,
	}
	if qerr := s.queue.Enqueue(qr); qerr != nil {
		// queue unavailable on top of the network being down; this is
		// the one case the route surfaces an error
		s.log.Error().Err(qerr).Msg("enqueue advice request failed")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	s.log.Info().Str("id", qr.ID).Msg("advice request queued for replay")

	w.Header().Set("Content-Type", "application/json")
	setCacheHeader(w.Header(), "queued")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(queuedAck{Queued: true, Message: queuedMessage}); err != nil {
		s.log.Error().Err(err).Msg("write queued ack failed")
	}
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()
	return io.ReadAll(r.Body)
}
