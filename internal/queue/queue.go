// Package queue holds mutating requests that failed at the network layer
// until connectivity returns. Order is FIFO; entries older than the
// retention window are dropped without replay.
package queue

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long a queued request stays replayable.
const DefaultRetention = 24 * time.Hour

// Request is a serialized mutating request awaiting replay.
type Request struct {
	ID         string      `json:"id"`
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// Expired reports whether the request fell out of the retention window.
func (r *Request) Expired(retention time.Duration, now time.Time) bool {
	return now.Sub(r.EnqueuedAt) > retention
}

// ErrNotFound is returned by Remove for an unknown request ID.
var ErrNotFound = errors.New("queue: request not found")

// Queue is the durable FIFO retry queue.
type Queue interface {
	// Enqueue appends a request. A missing ID or timestamp is filled in.
	Enqueue(req *Request) error

	// DequeueAll returns every queued request in FIFO order without
	// removing anything; callers Remove entries after successful replay.
	DequeueAll() ([]*Request, error)

	// Remove deletes a request by ID.
	Remove(id string) error

	Close() error
}

func stamp(req *Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}
}
