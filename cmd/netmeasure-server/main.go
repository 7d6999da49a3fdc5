package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/netmeasure/internal/api/http"
	"github.com/EternisAI/netmeasure/internal/auth"
	"github.com/EternisAI/netmeasure/internal/db"
	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/EternisAI/netmeasure/internal/geoip"
	"github.com/EternisAI/netmeasure/internal/history"
	"github.com/EternisAI/netmeasure/internal/netmeasure"
	"github.com/EternisAI/netmeasure/internal/nodes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Netmeasure Server", "version", AppVersion)

	if config.Gateway.Key == "" {
		slog.Warn("Gateway key is not configured, every persistent node handshake will be refused")
	}

	registry := gateway.NewRegistry()
	directory := nodes.NewDirectory(nodes.FromConfig(config.Nodes), registry)
	slog.Info("Static HTTP nodes loaded", "count", len(config.Nodes))

	services := &internalhttp.Services{
		Gateway:  gateway.NewHandler(config.Gateway, registry),
		Registry: registry,
		Tokens: auth.NewService(auth.JWTConfig{
			Secret: config.Http.JWTSecret,
			TTL:    config.Http.TokenTTL,
		}),
	}

	var (
		pool     *pgxpool.Pool
		recorder netmeasure.Recorder
	)
	if config.DB.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(ctx, config.DB.Url, config.DB.Schema); err != nil {
			cancel()
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}

		cancel()

		var err error
		pool, err = db.InitDB(context.Background(), config.DB.Url, config.DB.Schema)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}

		store := history.NewStore(pool)
		recorder = store
		services.History = store
	} else {
		slog.Info("No database configured, probe history disabled")
	}

	services.Measure = netmeasure.NewService(directory, config.Probe.DefaultNode, recorder)
	if config.Probe.GeoIPDB != "" {
		reader, err := geoip.Open(config.Probe.GeoIPDB)
		if err != nil {
			slog.Error("Failed to open GeoIP database", "path", config.Probe.GeoIPDB, "error", err)
			os.Exit(1)
		}
		defer reader.Close()
		services.Measure.WithLocator(reader)
		slog.Info("GeoIP database loaded", "path", config.Probe.GeoIPDB)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, config.Http, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	// Upgraded node connections are hijacked and not tracked by Shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.Stop()
		slog.Info("Node connections closed")
	}()

	wg.Wait()

	if pool != nil {
		pool.Close()
	}
	slog.Info("Shutdown complete")
}
