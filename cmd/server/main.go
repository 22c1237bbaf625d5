package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/config"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/logging"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/metrics"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/record"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use standard logger as fallback if config loading fails
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize base logger
	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Create a service logger with additional fields
	serviceLogger := logger.WithFields(map[string]interface{}{
		"service":     "ikhana-trim-server",
		"environment": cfg.Environment,
	})

	store, err := record.Open(cfg.Results.DB)
	if err != nil {
		serviceLogger.Fatal("Failed to open results database", map[string]interface{}{
			"path":  cfg.Results.DB,
			"error": err.Error(),
		})
	}
	defer store.Close()

	srv, err := server.NewServer(cfg, serviceLogger,
		server.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		server.WithStore(store),
		server.WithWriter(record.NewWriter(cfg.Results.Dir, cfg.Results.DumpForces)),
	)
	if err != nil {
		serviceLogger.Fatal("Failed to create server", map[string]interface{}{"error": err.Error()})
	}

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(errors.RecoveryMiddleware(serviceLogger))
	r.Use(errors.ErrorHandler(serviceLogger))
	r.Use(middleware.Timeout(60 * time.Second))

	// Add request context logger
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := serviceLogger.WithFields(map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
			})
			reqCtx := (&logging.CtxLogger{Logger: reqLogger}).WithContext(r.Context())
			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	})

	// Add health check endpoint
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if l := logging.FromContext(r.Context()); l != nil {
			l.Debug("Health check")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Add metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start HTTP server
	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address":    httpServer.Addr,
			"results":    cfg.Results.Dir,
			"method":     cfg.Optimization.Method,
			"max_active": cfg.Optimization.WorkerCount,
		})

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	// Cancel running studies before the store closes
	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err.Error()})
	}

	serviceLogger.Info("server exited properly")
}
