// Package server composes the runtime's components (store, broker, push
// dispatcher, router, transports) from a config.Config and runs them
// until the given context is canceled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/agentcard"
	"github.com/kadirpekel/a2arun/pkg/auth"
	"github.com/kadirpekel/a2arun/pkg/broker"
	"github.com/kadirpekel/a2arun/pkg/config"
	"github.com/kadirpekel/a2arun/pkg/handler"
	"github.com/kadirpekel/a2arun/pkg/metrics"
	"github.com/kadirpekel/a2arun/pkg/push"
	"github.com/kadirpekel/a2arun/pkg/router"
	"github.com/kadirpekel/a2arun/pkg/store"
	"github.com/kadirpekel/a2arun/pkg/tracing"
	httptransport "github.com/kadirpekel/a2arun/pkg/transport/http"
	wstransport "github.com/kadirpekel/a2arun/pkg/transport/ws"
)

// Server owns every long-lived component a running agent needs: the task
// store, event broker, push dispatcher, JSON-RPC router and the HTTP/WS
// listeners built on top of it.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	store  store.Store
	broker *broker.Broker
	router *router.Router
	card   *a2a.AgentCard

	httpSrv *http.Server
	wsSrv   *http.Server

	tracingShutdown func(context.Context) error
}

// New builds a Server from cfg. It opens a database connection for
// non-memory store dialects, loads the agent card, and constructs the
// auth validator, but does not start listening.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("server: init tracing: %w", err)
	}

	s, err := newStore(ctx, cfg.Store)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("server: init store: %w", err)
	}

	card, err := agentcard.LoadFile(cfg.Server.AgentCardPath)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("server: load agent card: %w", err)
	}
	card = agentcard.WithRuntimeCapabilities(card, true, true)

	validator, err := auth.NewValidatorFromConfig(ctx, auth.Config{
		Enabled:  cfg.Auth.Enabled,
		JWKSURL:  cfg.Auth.JWKSURL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("server: init auth: %w", err)
	}

	m := metrics.New("a2arun")
	b := broker.New(cfg.Broker.BufferSize, cfg.Broker.GCInterval)
	p := push.New(&http.Client{Timeout: 10 * time.Second}, push.RetryPolicy{
		MaxAttempts: cfg.Push.MaxAttempts,
		BaseDelay:   cfg.Push.BaseDelay,
		MaxDelay:    cfg.Push.MaxDelay,
	})
	h := handler.NewDefaultHandler(s)
	r := router.New(s, h, b, p, logger)

	httpHandler := httptransport.New(r, card, validator, m, logger)
	wsHandler := wstransport.New(r, validator, m, logger)

	return &Server{
		cfg:             cfg,
		logger:          logger,
		metrics:         m,
		store:           s,
		broker:          b,
		router:          r,
		card:            card,
		httpSrv:         &http.Server{Addr: cfg.Server.HTTPAddr, Handler: httpHandler},
		wsSrv:           &http.Server{Addr: cfg.Server.WSAddr, Handler: wsHandler},
		tracingShutdown: shutdown,
	}, nil
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.Dialect == config.StoreDialectMemory {
		return store.NewMemoryStore(), nil
	}

	driverName, dialect, err := driverFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	sqlStore := store.NewSQLStore(db, dialect)
	if err := sqlStore.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return sqlStore, nil
}

func driverFor(d config.StoreDialect) (driverName string, dialect store.Dialect, err error) {
	switch d {
	case config.StoreDialectPostgres:
		return "postgres", store.DialectPostgres, nil
	case config.StoreDialectMySQL:
		return "mysql", store.DialectMySQL, nil
	case config.StoreDialectSQLite:
		return "sqlite3", store.DialectSQLite, nil
	default:
		return "", "", fmt.Errorf("unsupported store dialect %q", d)
	}
}

// Run starts the broker's GC loop and both transport listeners, blocking
// until ctx is canceled, then drains everything within
// cfg.Server.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.broker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return serveUntilDone(gctx, s.httpSrv, s.logger, "http")
	})
	g.Go(func() error {
		return serveUntilDone(gctx, s.wsSrv, s.logger, "ws")
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	err := g.Wait()
	s.tracingShutdown(context.Background())
	return err
}

func serveUntilDone(ctx context.Context, srv *http.Server, logger *slog.Logger, name string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "transport", name, "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := s.httpSrv.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.wsSrv.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Router exposes the constructed router for callers (tests, the CLI's
// validate subcommand) that need to dispatch requests directly without
// going through a transport.
func (s *Server) Router() *router.Router {
	return s.router
}

// AgentCard returns the decoded, capability-adjusted agent card this
// server was built with.
func (s *Server) AgentCard() *a2a.AgentCard {
	return s.card
}
