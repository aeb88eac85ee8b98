package replay

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const probeTimeout = 5 * time.Second

// Monitor probes the backend's health endpoint and fires OnOnline on
// every offline-to-online transition. The first successful probe after
// startup also counts as a transition, so requests queued across a
// restart get replayed.
type Monitor struct {
	Client   *http.Client
	Origin   string
	Interval time.Duration
	OnOnline func(ctx context.Context)
	Log      zerolog.Logger
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	online := false
	for {
		up := m.probe(ctx)
		if up && !online {
			m.Log.Info().Msg("backend reachable, triggering queue replay")
			m.OnOnline(ctx)
		} else if !up && online {
			m.Log.Warn().Msg("backend unreachable, entering offline mode")
		}
		online = up

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, m.Origin+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := m.Client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}
