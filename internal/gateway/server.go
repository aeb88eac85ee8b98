// Package gateway implements the offline-first HTTP boundary of Krishi
// Mitra: a router that classifies every request onto one of three
// caching policies, backed by a partitioned durable store and a
// write-behind retry queue.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/krishimitra/offline-gateway/internal/config"
	"github.com/krishimitra/offline-gateway/internal/queue"
	"github.com/krishimitra/offline-gateway/internal/store"
)

// Prefetcher force-populates the api-data partition; implemented by
// internal/prefetch, injected to keep this package free of manifest
// building.
type Prefetcher interface {
	Run(ctx context.Context) (cached, failed []string)
}

type Server struct {
	Router *chi.Mux
	Hub    *Hub

	store    store.Store
	queue    queue.Queue
	routes   *RouteTable
	prefetch Prefetcher
	client   *http.Client
	origin   string
	log      zerolog.Logger

	revalSem chan struct{}
	bg       sync.WaitGroup
}

type ServerOptions struct {
	Store    store.Store
	Queue    queue.Queue
	Prefetch Prefetcher
	Cfg      *config.Config
	Client   *http.Client // optional; defaults to a 30s-timeout client
	Log      zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	s := &Server{
		Router:   r,
		Hub:      NewHub(opts.Log),
		store:    opts.Store,
		queue:    opts.Queue,
		routes:   NewRouteTable(opts.Cfg.DataRoutes()),
		prefetch: opts.Prefetch,
		client:   client,
		origin:   opts.Cfg.BackendOrigin,
		log:      opts.Log,
		revalSem: make(chan struct{}, 8),
	}

	r.Get("/internal/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/internal/control", s.handleControl)
	r.Get("/internal/events", s.Hub.ServeHTTP)
	r.Handle("/*", http.HandlerFunc(s.handle))

	return s
}

// Drain waits for in-flight background revalidations; called on
// shutdown and by tests that assert on post-response cache state.
func (s *Server) Drain() {
	s.bg.Wait()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch s.routes.Classify(r.Method, r.URL.Path, r.Header.Get("Sec-Fetch-Dest")) {
	case DecideStatic:
		s.serveSWR(w, r, config.PartitionStatic, r.URL.RequestURI())
	case DecideImage:
		s.serveCacheFirst(w, r, config.PartitionImages, r.URL.RequestURI())
	case DecideAPI:
		s.serveSWR(w, r, config.PartitionAPI, apiCacheKey(r.URL.RequestURI()))
	case DecideAdvice:
		s.serveAdvice(w, r)
	case DecideDocument:
		s.serveDocument(w, r)
	default:
		s.servePassthrough(w, r)
	}
}

// serveSWR answers from cache when possible and refreshes the entry in
// the background; a cache miss falls through to a blocking fetch.
func (s *Server) serveSWR(w http.ResponseWriter, r *http.Request, partition, key string) {
	if e, err := s.store.Get(partition, key); err == nil {
		writeEntry(w, e, "hit")
		s.revalidate(partition, key, r.URL.RequestURI(), cloneHeader(r.Header))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Error().Err(err).Str("partition", partition).Msg("cache read failed")
	}

	e, err := fetchOrigin(r.Context(), s.client, s.origin, r.Method, r.URL.RequestURI(), r.Header, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("origin unreachable on cache miss")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	s.storeEntry(partition, key, e)
	writeEntry(w, e, "miss")
}

// serveCacheFirst never re-fetches while a cached copy exists.
func (s *Server) serveCacheFirst(w http.ResponseWriter, r *http.Request, partition, key string) {
	if e, err := s.store.Get(partition, key); err == nil {
		writeEntry(w, e, "hit")
		return
	}
	e, err := fetchOrigin(r.Context(), s.client, s.origin, r.Method, r.URL.RequestURI(), r.Header, nil)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	s.storeEntry(partition, key, e)
	writeEntry(w, e, "miss")
}

// serveDocument proxies navigations and serves the offline page when
// the network is unreachable.
func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request) {
	e, err := fetchOrigin(r.Context(), s.client, s.origin, r.Method, r.URL.RequestURI(), r.Header, nil)
	if err != nil {
		s.log.Info().Str("path", r.URL.Path).Msg("serving offline fallback page")
		serveOfflinePage(w)
		return
	}
	writeEntry(w, e, "")
}

func (s *Server) servePassthrough(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		b, err := readBody(r)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body = b
	}
	e, err := fetchOrigin(r.Context(), s.client, s.origin, r.Method, r.URL.RequestURI(), r.Header, body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	writeEntry(w, e, "")
}

func (s *Server) storeEntry(partition, key string, e *store.Entry) {
	if !cacheable(e) {
		return
	}
	if err := s.store.Put(partition, key, e); err != nil {
		s.log.Error().Err(err).Str("partition", partition).Str("key", key).Msg("cache write failed")
	}
}

// revalidate refreshes one cache entry in a detached task. A failed
// refresh leaves the cached entry untouched.
func (s *Server) revalidate(partition, key, requestURI string, header http.Header) {
	select {
	case s.revalSem <- struct{}{}:
	default:
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer func() { <-s.revalSem }()

		ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
		defer cancel()

		e, err := fetchOrigin(ctx, s.client, s.origin, http.MethodGet, requestURI, header, nil)
		if err != nil {
			s.log.Debug().Err(err).Str("key", key).Msg("revalidation failed, keeping stale entry")
			return
		}
		s.storeEntry(partition, key, e)
	}()
}
