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

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/omslab/order-service/internal/config"
	"github.com/omslab/order-service/internal/events"
	gqlapi "github.com/omslab/order-service/internal/graphql"
	"github.com/omslab/order-service/internal/orders"
	"github.com/omslab/order-service/internal/storage"
	"github.com/omslab/order-service/internal/websocket"
	"github.com/omslab/order-service/pkg/metrics"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg := config.Load()

	db, err := openDatabase(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	// Wait for the database to be ready.
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := storage.InitSchema(ctx, db); err != nil {
		logger.WithError(err).Fatal("Failed to initialize schema")
	}

	bus := events.NewBus(logger)
	publisher := events.Fanout{bus}

	if cfg.KafkaBrokers != "" {
		sink, err := events.NewKafkaSink(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka sink")
		}
		defer sink.Close()
		publisher = append(publisher, sink)
		logger.WithField("brokers", cfg.KafkaBrokers).Info("Kafka event sink enabled")
	}

	store := storage.NewSQLStore(db)
	service := orders.NewService(store, publisher, logger)

	serverMetrics := metrics.NewServerMetrics("order_service")
	service.SetMetrics(serverMetrics)

	schema, err := gqlapi.NewSchema(service, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build GraphQL schema")
	}

	hub := websocket.NewHub(bus, logger)
	go hub.Run(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"order-service"}`))
	}).Methods("GET")
	router.Handle("/graphql", gqlapi.NewHTTPHandler(schema, logger)).Methods("POST")
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	router.Use(loggingMiddleware(logger, serverMetrics))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		// modernc's driver needs a single connection for a shared
		// in-memory or file database.
		db.SetMaxOpenConns(1)
		return db, nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		return sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unknown DB driver %q", cfg.DBDriver)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *logrus.Logger, m *metrics.ServerMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades need the raw ResponseWriter (Hijacker).
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			elapsed := time.Since(start)
			m.Requests.WithLabelValues(r.URL.Path, fmt.Sprintf("%d", recorder.status)).Inc()
			m.LatencyMS.WithLabelValues(r.URL.Path).Observe(float64(elapsed.Milliseconds()))

			logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      recorder.status,
				"duration_ms": elapsed.Milliseconds(),
			}).Info("Request handled")
		})
	}
}
