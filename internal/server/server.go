// Package server binds the pool, the write-serializer, the embedding cache
// and the document list into a request-handling HTTP server with graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/api"
	"github.com/farosearch/faro/internal/config"
	"github.com/farosearch/faro/internal/dbpool"
	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/embedding"
	"github.com/farosearch/faro/internal/search"
	"github.com/farosearch/faro/internal/service"
	"github.com/farosearch/faro/internal/store"
)

// shutdownGrace is how long in-flight requests get to finish after a
// termination signal.
const shutdownGrace = 10 * time.Second

// Application is a fully wired server ready to run.
type Application struct {
	listener net.Listener
	server   *http.Server
	pool     *dbpool.Pool
	writer   *service.Writer
	log      *logrus.Logger
}

// Build opens the pool and the writer connection, wires the search engine
// and the HTTP router, and binds the listen socket. If the configured port
// is taken it falls back to an ephemeral one.
func Build(ctx context.Context, cfg *config.Settings, docs []domain.Document, log *logrus.Logger, version string, devMode bool) (*Application, error) {
	pool, err := dbpool.New(ctx, cfg.DBSettings.DBPath, cfg.DBSettings.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("building connection pool: %w", err)
	}

	writer, err := service.NewWriter(cfg.DBSettings.DBPath, log)
	if err != nil {
		pool.Close()

		return nil, fmt.Errorf("starting write serializer: %w", err)
	}

	client := embedding.NewClient(
		cfg.EmbeddingProvider.EndpointURL,
		cfg.EmbeddingProvider.AuthToken.Value(),
		log,
	)

	cache := embedding.NewCache(ctx)
	engine := search.NewEngine(pool, docs, client, cache, writer, log)

	base := store.Base{Pool: pool, Log: log}

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:       log,
		Pool:      pool,
		Documents: docs,
		Engine:    engine,
		History:   store.NewHistoryStore(base),
		Favorites: store.NewFavoritesStore(base),
		Users:     store.NewUserStore(base),
		Version:   version,
		DevMode:   devMode,
	})

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.WithError(err).Warn("configured address unavailable, falling back to an ephemeral port")

		listener, err = net.Listen("tcp", fmt.Sprintf("%s:0", cfg.AppSettings.Host))
		if err != nil {
			pool.Close()

			return nil, fmt.Errorf("binding listen socket: %w", err)
		}
	}

	return &Application{
		listener: listener,
		server:   &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second},
		pool:     pool,
		writer:   writer,
		log:      log,
	}, nil
}

// Addr returns the bound listen address.
func (a *Application) Addr() string {
	return a.listener.Addr().String()
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains:
// the server stops accepting connections, in-flight requests get
// shutdownGrace to finish, the writer drains its queue, and the pool is
// closed, after which acquires are refused.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writerCtx, cancelWriter := context.WithCancel(context.Background())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		a.writer.Run(writerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Serve(a.listener)
	}()

	a.log.WithField("addr", a.Addr()).Info("server listening")

	select {
	case err := <-serveErr:
		cancelWriter()
		<-writerDone
		a.pool.Close()

		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)

	cancelWriter()
	<-writerDone

	if poolErr := a.pool.Close(); poolErr != nil && err == nil {
		err = poolErr
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutting down: %w", err)
	}

	a.log.Info("server stopped")

	return nil
}
