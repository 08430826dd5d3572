package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fleetwatch/internal/backend"
	"fleetwatch/internal/dashboard"
	"fleetwatch/internal/display"
	displayhandler "fleetwatch/internal/display/handler"
	"fleetwatch/internal/platform/config"
	"fleetwatch/internal/platform/httpserver"
	"fleetwatch/internal/platform/logger"
	"fleetwatch/internal/platform/metrics"
	"fleetwatch/internal/platform/redis"
	"fleetwatch/internal/session"
)

// main wires the console: configuration, session storage, the backend
// client, the dashboard engine, the optional display API and the REPL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("console exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store, closeStore, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// The client and the session manager need each other; the manager is
	// assigned before the first call goes out.
	var manager *session.Manager
	expired := make(chan struct{}, 1)
	client, err := backend.New(cfg.Backend.URL,
		backend.WithLogger(log),
		backend.WithMetrics(m),
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithTokenSource(backend.TokenSourceFunc(func(ctx context.Context) (string, error) {
			return manager.Token(ctx)
		})),
		// Runs on whichever goroutine saw the 401 and must not block on
		// the REPL.
		backend.WithUnauthorizedHook(func(ctx context.Context) {
			manager.ForceLogout(context.WithoutCancel(ctx))
			select {
			case expired <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	manager = session.NewManager(client, store,
		session.WithLogger(log),
		session.WithMetrics(m),
	)

	op := newOperator(os.Stdin, os.Stdout)
	dash := dashboard.New(client, op, op,
		dashboard.WithLogger(log),
		dashboard.WithMetrics(m),
		dashboard.WithPollInterval(cfg.Tracking.PollInterval),
		dashboard.WithAuditLimit(cfg.Tracking.AuditLimit),
		dashboard.WithViewport(display.Viewport{
			Center: display.Point{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng},
			Zoom:   cfg.Map.Zoom,
		}),
	)
	defer dash.Close()

	if cfg.ListenAddr != "" {
		srv := httpserver.New(cfg.ListenAddr, displayhandler.New(dash, registry, log).Router())
		serveCtx, stopServe := context.WithCancel(ctx)
		served := make(chan struct{})
		go func() {
			defer close(served)
			if err := httpserver.Run(serveCtx, srv, log); err != nil {
				log.Error("display API stopped", "error", err)
			}
		}()
		defer func() {
			stopServe()
			<-served
		}()
	}

	return newConsole(op, manager, dash, expired, log).Run(ctx)
}

// newSessionStore picks Redis when a URL is configured, else memory.
func newSessionStore(ctx context.Context, cfg config.Config, log *slog.Logger) (session.Store, func(), error) {
	client, err := redis.New(ctx, cfg.Session)
	if err != nil {
		return nil, nil, fmt.Errorf("connect session store: %w", err)
	}
	if client == nil {
		log.Info("session store: memory")
		return session.NewMemoryStore(), func() {}, nil
	}
	log.Info("session store: redis", "prefix", client.Prefix())
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	return client.SessionStore(), closeFn, nil
}
