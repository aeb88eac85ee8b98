// Package prefetch force-populates the api-data cache partition with
// the datasets a farmer needs before going offline: weather, market
// prices, crop calendar and advisories for their configured district
// and crop.
package prefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/krishimitra/offline-gateway/internal/config"
	"github.com/krishimitra/offline-gateway/internal/store"
)

// Manifest builds the fixed list of essential URLs for a profile.
func Manifest(p config.Profile) []string {
	district := url.QueryEscape(p.District)
	crop := url.QueryEscape(p.Crop)
	market := url.QueryEscape(p.Market)
	return []string{
		"/weather?district=" + district,
		fmt.Sprintf("/market?crop=%s&market=%s&days=%d", crop, market, p.MarketDays),
		"/calendar?district=" + district,
		fmt.Sprintf("/advisories?district=%s&crop=%s", district, crop),
	}
}

// Runner performs one best-effort bulk prefetch per trigger. Individual
// URL failures never abort the run.
type Runner struct {
	Store       store.Store
	Client      *http.Client
	Origin      string
	Profile     config.Profile
	Log         zerolog.Logger
	Concurrency int // 0 means 4
}

// Run fetches every manifest URL and overwrites the api-data partition
// with whatever succeeds. It returns the URLs that were cached and the
// URLs that failed.
func (r *Runner) Run(ctx context.Context) (cached, failed []string) {
	manifest := Manifest(r.Profile)
	errs := make([]error, len(manifest))

	limit := r.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range manifest {
		i, u := i, u
		g.Go(func() error {
			errs[i] = r.fetchAndStore(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for i, u := range manifest {
		if errs[i] != nil {
			r.Log.Warn().Err(errs[i]).Str("url", u).Msg("prefetch failed for url")
			failed = append(failed, u)
			continue
		}
		cached = append(cached, u)
	}
	return cached, failed
}

func (r *Runner) fetchAndStore(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Origin+u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	e := &store.Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now(),
	}
	e.Header.Del("Content-Length")
	if err := r.Store.Put(config.PartitionAPI, u, e); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
