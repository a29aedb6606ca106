package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamxAPI/config"
	"streamxAPI/handlers"
	"streamxAPI/internal/logger"
	"streamxAPI/internal/store"
	"streamxAPI/middleware"
	"streamxAPI/services"
)

func main() {
	defer logger.Sync()

	cfg := config.Load()
	middleware.InitPrometheus()

	st := openStore(cfg)
	defer st.Close()

	customerService := services.NewCustomerService(st)
	customerHandler := handlers.NewCustomerHandler(customerService, cfg.StoreTimeout)
	router := handlers.NewRouter(customerHandler, cfg.AuthToken, cfg.MetricsUser, cfg.MetricsPass)

	go middleware.CleanupVisitors()

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", middleware.AuthHeader}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// openStore builds the persistence adapter. A store that cannot be reached
// at startup is fatal: the process refuses to serve with a broken store.
func openStore(cfg *config.Config) store.Store {
	if cfg.StoreDriver == "memory" {
		log.Println("Using in-memory store; data will not survive a restart")
		return store.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.ConnectTimeout = cfg.StoreTimeout

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	pg := store.NewPostgresStore(dbPool)
	if err := pg.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema:", err)
	}

	log.Println("Successfully connected to Postgres")
	return pg
}
