// cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/krishimitra/offline-gateway/internal/config"
	"github.com/krishimitra/offline-gateway/internal/gateway"
	"github.com/krishimitra/offline-gateway/internal/prefetch"
	"github.com/krishimitra/offline-gateway/internal/queue"
	"github.com/krishimitra/offline-gateway/internal/replay"
	"github.com/krishimitra/offline-gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Printf("starting gateway on %s (backend %s)", cfg.ListenAddr, cfg.BackendOrigin)

	// Durable cache + retry queue
	st, err := store.OpenLevelDB(filepath.Join(cfg.DataDir, "cache"), cfg.Partitions())
	if err != nil {
		log.Fatalf("cache store error: %v", err)
	}
	defer func() { _ = st.Close() }()

	q, err := queue.OpenLevelDB(filepath.Join(cfg.DataDir, "queue"))
	if err != nil {
		log.Fatalf("retry queue error: %v", err)
	}
	defer func() { _ = q.Close() }()

	client := &http.Client{Timeout: 30 * time.Second}

	runner := &prefetch.Runner{
		Store:   st,
		Client:  client,
		Origin:  cfg.BackendOrigin,
		Profile: cfg.Profile,
		Log:     logger.With().Str("component", "prefetch").Logger(),
	}

	s := gateway.New(gateway.ServerOptions{
		Store:    st,
		Queue:    q,
		Prefetch: runner,
		Cfg:      cfg,
		Client:   client,
		Log:      logger.With().Str("component", "gateway").Logger(),
	})
	h := hlog.NewHandler(logger)(s.Router)

	drainer := &replay.Drainer{
		Queue:     q,
		Client:    client,
		Origin:    cfg.BackendOrigin,
		Retention: cfg.QueueRetention,
		Log:       logger.With().Str("component", "replay").Logger(),
	}
	monitor := &replay.Monitor{
		Client:   client,
		Origin:   cfg.BackendOrigin,
		Interval: cfg.ProbeInterval,
		Log:      logger.With().Str("component", "monitor").Logger(),
		OnOnline: func(ctx context.Context) {
			if err := drainer.Drain(ctx); err != nil {
				logger.Error().Err(err).Msg("queue drain failed")
			}
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go monitor.Run(ctx)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: h}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	s.Drain()
}
