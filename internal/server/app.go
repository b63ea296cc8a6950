// Package server initializes and runs the fundkeeper server: it opens
// storage, applies migrations, builds the services and serves the JSON API
// and the gRPC health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
	"github.com/dmitrijs2005/fundkeeper/internal/server/storage"

	gs "github.com/dmitrijs2005/fundkeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	storage *storage.Storage
	http    *httpapi.Server
	grpc    *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	st, err := storage.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := st.Manager.RunMigrations(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return newApp(c, logger, st), nil
}

func newApp(c *config.Config, logger logging.Logger, st *storage.Storage) *App {
	m, tx := st.Manager, st.Transactor
	svc := httpapi.Services{
		Users:        services.NewUserService(tx, m, logger, c),
		Funds:        services.NewFundService(tx, m, logger),
		Senders:      services.NewSenderService(tx, m, logger),
		Transactions: services.NewTransactionService(tx, m, logger),
		Exports:      services.NewExportService(tx, m, logger, c),
	}

	return &App{
		config:  c,
		logger:  logger,
		storage: st,
		http:    httpapi.NewServer(c.EndpointAddrHTTP, logger, svc),
		grpc:    gs.NewGRPCServer(c.EndpointAddrGRPC, logger, st.Probe),
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until ctx is cancelled, a signal arrives or either server
// fails. A failing server stops the other one.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "in_memory", app.config.InMemory())

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	for name, run := range map[string]func(context.Context) error{
		"http": app.http.Run,
		"grpc": app.grpc.Run,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, "server failed", "server", name, "error", err)
				cancelFunc()
			}
		}()
	}

	wg.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(ctx, "storage close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
