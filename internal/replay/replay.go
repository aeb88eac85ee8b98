// Package replay resubmits queued advice requests once connectivity to
// the backend returns.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/krishimitra/offline-gateway/internal/gateway"
	"github.com/krishimitra/offline-gateway/internal/queue"
)

// Drainer replays queued requests in FIFO order. A retryable failure
// stops the drain so ordering is preserved for the next trigger;
// entries older than the retention window are dropped without replay.
type Drainer struct {
	Queue     queue.Queue
	Client    *http.Client
	Origin    string
	Retention time.Duration
	Log       zerolog.Logger

	mu sync.Mutex // one drain at a time
}

func (d *Drainer) retention() time.Duration {
	if d.Retention > 0 {
		return d.Retention
	}
	return queue.DefaultRetention
}

// Drain attempts every queued request once. Entries are removed only
// after the backend has seen them (or after retention expiry).
func (d *Drainer) Drain(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	reqs, err := d.Queue.DequeueAll()
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}

	now := time.Now()
	for _, qr := range reqs {
		if qr.Expired(d.retention(), now) {
			d.Log.Info().Str("id", qr.ID).Time("enqueued_at", qr.EnqueuedAt).Msg("dropping expired queued request")
			if err := d.Queue.Remove(qr.ID); err != nil {
				d.Log.Error().Err(err).Str("id", qr.ID).Msg("remove expired request failed")
			}
			continue
		}

		status, err := d.send(ctx, qr)
		if err != nil {
			// still offline; leave this and everything after it queued
			d.Log.Warn().Err(err).Str("id", qr.ID).Msg("replay failed, stopping drain")
			return nil
		}
		if retryableStatus(status) {
			d.Log.Warn().Int("status", status).Str("id", qr.ID).Msg("backend not ready, stopping drain")
			return nil
		}

		// delivered: any terminal response, success or not, dequeues it
		d.Log.Info().Int("status", status).Str("id", qr.ID).Msg("queued request replayed")
		if err := d.Queue.Remove(qr.ID); err != nil {
			d.Log.Error().Err(err).Str("id", qr.ID).Msg("remove replayed request failed")
		}
	}
	return nil
}

func (d *Drainer) send(ctx context.Context, qr *queue.Request) (int, error) {
	req, err := http.NewRequestWithContext(ctx, qr.Method, gateway.BackendURL(d.Origin, qr.URL), bytes.NewReader(qr.Body))
	if err != nil {
		return 0, fmt.Errorf("build replay request: %w", err)
	}
	for k, vs := range qr.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// retryableStatus mirrors the transient half of the usual worker error
// split: rate limiting and server-side failures warrant another
// attempt, anything else means the request was consumed.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
