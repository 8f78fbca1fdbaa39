// Package server wires the gateway together: postgres, S3, the optional
// redis cache, the HTTP API, the gRPC health service and the background
// sweeper. Run blocks until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/logging"
	"github.com/dmitrijs2005/snapboard/internal/server/cache"
	"github.com/dmitrijs2005/snapboard/internal/server/config"
	"github.com/dmitrijs2005/snapboard/internal/server/httpapi"
	"github.com/dmitrijs2005/snapboard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/snapboard/internal/server/services"
	"github.com/dmitrijs2005/snapboard/internal/server/storage"

	gs "github.com/dmitrijs2005/snapboard/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []func() error

	userService    *services.UserService
	postService    *services.PostService
	galleryService *services.GalleryService
	sweeper        *services.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.Logger)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	var lc cache.ListCache = cache.Nop{}
	if c.RedisAddr != "" {
		rc, err := cache.Dial(ctx, c.RedisAddr, c.ListCacheTTL)
		if err != nil {
			// the cache is an optimisation; run without it
			logger.Warn(ctx, "redis unavailable, list cache disabled", "addr", c.RedisAddr, "error", err)
		} else {
			lc = rc
			app.closers = append(app.closers, rc.Close)
		}
	}

	app.userService = services.NewUserService(db, rm, c, logger)
	app.postService = services.NewPostService(db, rm, lc, logger)
	app.galleryService = services.NewGalleryService(db, rm, store, lc, c.PendingGalleryTTL, logger)

	app.sweeper = services.NewSweeper(c.SweepInterval, logger)
	app.sweeper.Add("stale_galleries", app.galleryService.SweepStale)
	app.sweeper.Add("expired_tokens", app.userService.PurgeExpired)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.userService, app.postService, app.galleryService, app.logger)
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(ctx, "close error", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
