package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"easybid/db"
	"easybid/db/migrations"
	"easybid/internal/auth"
	"easybid/internal/bids"
	"easybid/internal/config"
	"easybid/internal/evaluations"
	"easybid/internal/handlers"
	"easybid/internal/logger"
	"easybid/internal/metrics"
	"easybid/internal/notify"
	"easybid/internal/store"
	"easybid/internal/store/memstore"
	"easybid/internal/tenders"
	"easybid/internal/users"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting easybid", cfg.Fields()...)

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()

	dispatcher := notify.NewDispatcher(st, notify.LogMailer{From: cfg.MailFrom, Log: log}, log,
		notify.WithQueueSize(cfg.NotifyQueueSize),
		notify.WithWorkers(cfg.NotifyWorkers),
		notify.WithMetrics(m),
	)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(ctx)
	}()

	lifecycle := tenders.NewService(st, dispatcher, log, tenders.WithMetrics(m))
	h := &handlers.Handler{
		Users:       users.NewService(st, log),
		Tenders:     lifecycle,
		Bids:        bids.NewService(st, dispatcher, log, bids.WithMetrics(m)),
		Evaluations: evaluations.NewService(st, lifecycle, log),
		Inbox:       notify.NewInbox(st),
		Tokens:      auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
	}

	router, err := handlers.NewRouter(h, handlers.RouterConfig{
		Log:         log,
		Metrics:     m,
		BidLimiter:  handlers.NewRateLimiter(cfg.BidRatePerSec, cfg.BidRateBurst),
		ExposeStats: true,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	stop()
	<-dispatchDone
	return nil
}

// openStore подключает PostgreSQL или хранилище в памяти для локального запуска
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.PostgresConn)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := migrations.Run(ctx, conn.DB); err != nil {
			conn.Close()
			return nil, nil, err
		}
		log.Info("migrations applied")
	}
	return db.NewStorage(conn), func() { conn.Close() }, nil
}
