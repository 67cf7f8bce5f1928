package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-ledger-go/internal/config"
	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-ledger-go/internal/domain/leave"
	appHTTP "github.com/cmlabs-hris/hris-ledger-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/logger"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-ledger-go/internal/pkg/storage"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/memory"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/postgresql"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/snapshot"
	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/sqlite"
	attendanceService "github.com/cmlabs-hris/hris-ledger-go/internal/service/attendance"
	leaveService "github.com/cmlabs-hris/hris-ledger-go/internal/service/leave"
	"golang.org/x/sync/errgroup"
)

const (
	appName    = "hris-ledger"
	appVersion = "v1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.Options{
		App:     appName,
		Version: appVersion,
		Env:     cfg.App.Env,
		Level:   cfg.SlogLevel(),
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()
	log.Info("Snapshot storage ready", "type", cfg.Storage.Type)

	leaveDefaults, err := config.LoadLeaveDefaults(cfg.Leave.PolicyFile)
	if err != nil {
		return err
	}

	hub := sse.NewHub()

	attendanceSvc, err := attendanceService.NewAttendanceService(ctx,
		snapshot.New(backend, "attendance", attendance.NewState),
		attendanceService.Options{
			Location:       cfg.Location(),
			StrictOverride: cfg.Attendance.StrictOverride,
			Events:         hub,
			Logger:         log,
		},
	)
	if err != nil {
		return err
	}

	leaveSvc, err := leaveService.NewLeaveService(ctx,
		snapshot.New(backend, "leave", func() leave.State { return leave.NewState(leaveDefaults.Policies) }),
		leaveService.Options{
			Defaults:      leaveDefaults,
			EnforcePolicy: cfg.Leave.EnforcePolicy,
			Events:        hub,
			Logger:        log,
		},
	)
	if err != nil {
		return err
	}

	scheduler := cron.NewScheduler(log)
	if cfg.Attendance.AutoCloseStale {
		cron.NewAttendanceJobs(attendanceSvc, cfg.Attendance.StaleSessionInterval, nil, log).RegisterJobs(scheduler)
	}

	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Logger:         log,
		AllowedOrigins: cfg.App.AllowedOrigins,
		Events:         appHTTP.NewEventsHandler(hub, cfg.App.SSEKeepalive),
	},
		appHTTP.NewAttendanceHandler(attendanceSvc),
		appHTTP.NewLeaveHandler(leaveSvc),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openBackend builds the snapshot backend named by STORAGE_TYPE and returns
// a func releasing its resources.
func openBackend(ctx context.Context, cfg *config.Config) (snapshot.Backend, func(), error) {
	noop := func() {}

	switch cfg.Storage.Type {
	case config.StorageMemory:
		return memory.NewBackend(), noop, nil

	case config.StorageFile:
		local, err := storage.NewLocalStorage(cfg.Storage.BasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return local, noop, nil

	case config.StorageSQLite:
		db, err := database.NewSQLiteDB(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewSnapshotBackend(db), func() { db.Close() }, nil

	case config.StoragePostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgresql.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgresql.NewSnapshotBackend(db), db.Close, nil
	}

	return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
}
