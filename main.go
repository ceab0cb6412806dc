package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"queue-kiosk/internal/admin"
	admin_api "queue-kiosk/internal/admin/api"
	"queue-kiosk/internal/config"
	"queue-kiosk/internal/database/migrations"
	"queue-kiosk/internal/logger"
	"queue-kiosk/internal/scheduler"
	ticket_db "queue-kiosk/internal/tickets/db"
	tickets "queue-kiosk/internal/tickets/service"
	"queue-kiosk/internal/tickets/ticket_api"
	"queue-kiosk/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func openDatabase(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open SQLite database: %v", err))
	}

	// SQLite has a single writer; funnel everything through one connection so
	// writers queue in-process instead of fighting over the file lock.
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to SQLite database: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ SQLite connection successful (%s)", cfg.Path))
	return bun.NewDB(sqldb, sqlitedialect.New())
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Queue Kiosk Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := openDatabase(cfg.Database, logger)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			AutoMigrate: cfg.Database.AutoMigrate,
			SeedData:    cfg.Database.SeedData,
		})
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		logger.Info("DATABASE", "✅ Migrations applied")
	}

	hub := ws.NewHub(logger)
	go hub.Run()
	logger.Info("WEBSOCKET", "Broadcast hub started")

	ticketService := tickets.NewTicketService(&ticket_db.DB{Bun: bunDB}, hub, logger)
	ticketService.TxTimeout = cfg.Database.TxTimeout

	adminDB := &admin.DB{Bun: bunDB}

	resetScheduler := scheduler.New(ticketService, nil, logger, cfg.Scheduler.CheckInterval)

	adminService := admin.NewService(adminDB, resetScheduler, hub, logger)
	resetScheduler.Settings = adminService

	if err := adminService.EnsureDefaults(ctx); err != nil {
		logger.Fatal("ADMIN", fmt.Sprintf("Failed to seed default settings: %v", err))
	}
	logger.Info("ADMIN", "Default settings verified")

	resetScheduler.Start()
	defer resetScheduler.Stop()

	ticketHandler := ticket_api.NewHandler(ticketService, logger)
	adminHandler := admin_api.NewHandler(adminService, resetScheduler, logger)

	logger.Info("HTTP", "Setting up router")
	r := chi.NewRouter()

	// --- Public Routes ---
	ticketHandler.RegisterRoutes(r)
	r.Get("/ws", hub.HandleWS)
	logger.Info("ROUTER", "Public queue routes registered under /api/tickets, events on /ws")

	// --- Admin Routes ---
	adminHandler.RegisterRoutes(r)
	logger.Info("ROUTER", "Admin routes registered under /api/admin")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Queue Kiosk Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Queue Kiosk Service shutdown complete")
	}
}
