package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/krishimitra/offline-gateway/internal/store"
)

const revalidateTimeout = 30 * time.Second

// fetchOrigin issues a request against the backend origin and captures
// the full response as a cacheable snapshot.
func fetchOrigin(ctx context.Context, client *http.Client, origin, method, requestURI string, header http.Header, body []byte) (*store.Entry, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, BackendURL(origin, requestURI), rd)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	copyHeader(req.Header, header)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read origin response: %w", err)
	}

	e := &store.Entry{
		Status:   resp.StatusCode,
		Header:   cloneHeader(resp.Header),
		Body:     b,
		StoredAt: time.Now(),
	}
	e.Header.Del("Content-Length")
	return e, nil
}

// cacheable reports whether a response should be stored. Non-2xx
// responses and explicit no-store responses are kept out of the cache.
func cacheable(e *store.Entry) bool {
	if e.Status < 200 || e.Status >= 300 {
		return false
	}
	cc := strings.ToLower(e.Header.Get("Cache-Control"))
	return !strings.Contains(cc, "no-store")
}

func writeEntry(w http.ResponseWriter, e *store.Entry, cacheState string) {
	for k, vs := range e.Header {
		if strings.EqualFold(k, cacheHeader) {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	setCacheHeader(w.Header(), cacheState)
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

const cacheHeader = "X-Offline-Cache"

func setCacheHeader(h http.Header, state string) {
	if state != "" {
		h.Set(cacheHeader, state)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}
