package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/handler"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/scheduler"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/Dan9191/card-service/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// store is what both the service and the expiry job need from persistence
type store interface {
	service.CardRepository
	service.EmployeeDirectory
	scheduler.ExpiringCards
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize storage
	var repo store
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		mem := repository.NewMemory()
		mem.AddEmployee(models.Employee{ID: 1, FullName: "Demo Employee", Email: "demo@example.com"})
		logger.Warn("Using in-memory storage; data is lost on restart")
		repo = mem
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		pg := repository.NewRepository(db)
		if err := pg.Ping(context.Background()); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		repo = pg
	}

	// Initialize layers
	cipher, err := utils.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize cipher: %v", err)
	}
	svc := service.NewService(repo, repo, utils.NewBcryptHasher(), cipher, logger, cfg)
	h := handler.NewHandler(svc, logger)
	metrics.Init()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestID(logger), metrics.Instrument)
	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	h.RegisterCardRoutes(authRouter)

	// Expiration notices
	if cfg.SMTPEnabled() {
		notifier := scheduler.NewExpiryNotifier(repo, repo, email.NewSender(cfg, logger), cfg, logger)
		sched := scheduler.NewScheduler(notifier, cfg, logger)
		if err := sched.Start(); err != nil {
			logger.Fatalf("Failed to start scheduler: %v", err)
		}
		defer func() { <-sched.Stop().Done() }()
	} else {
		logger.Info("SMTP_HOST not set, expiration notices disabled")
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
