package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialgraph/internal/app"
	"socialgraph/internal/comments"
	"socialgraph/internal/config"
	"socialgraph/internal/consul"
	"socialgraph/internal/events"
	"socialgraph/internal/follow"
	"socialgraph/internal/likes"
	"socialgraph/internal/logger"
	"socialgraph/internal/notification"
	"socialgraph/internal/relation"
	"socialgraph/internal/server"
	"socialgraph/internal/telemetry"
)

func gracefulShutdown(apiServer *http.Server, consulClient *consul.Client, serviceID string, log *slog.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal
	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	if consulClient != nil {
		if err := consulClient.Deregister(serviceID); err != nil {
			log.Error("Failed to deregister from Consul", "error", err)
		} else {
			log.Info("Deregistered from Consul")
		}
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName)
	logger.SetDefault(log)

	log.Info("Starting social API",
		"port", cfg.ServicePort,
		"store", cfg.Store.Driver,
		"queue", cfg.Queue.Driver)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("Failed to initialise tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	stores, err := app.OpenStores(ctx, cfg, true, log)
	if err != nil {
		log.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	queue, err := app.OpenQueue(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to queue", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	producer := events.NewProducer(queue.Publisher, log)
	resolver := relation.NewResolver(stores)
	guard := relation.NewGuard(resolver, stores, stores)

	followSvc := follow.NewService(stores, stores, resolver, follow.Options{
		AutoAcceptPublic: cfg.Follow.AutoAcceptPublic,
		ListBatchSize:    cfg.Notify.BatchSize,
	}, log)
	likesSvc := likes.NewService(stores, guard, producer, log)
	commentsSvc := comments.NewService(stores, stores, resolver, guard, producer, log)
	inboxSvc := notification.NewService(stores)

	router := server.NewRouter(cfg.ServiceName, cfg.HTTP.CORSOrigins, log, server.JoinChecks(stores.Checks, queue.Checks)...)
	api := router.Group("/", server.RequireUser())
	follow.RegisterRoutes(api, follow.NewHandler(followSvc, guard, producer, log))
	likes.RegisterRoutes(api, likes.NewHandler(likesSvc))
	comments.RegisterRoutes(api, comments.NewHandler(commentsSvc))
	notification.RegisterRoutes(api, notification.NewHandler(inboxSvc))

	apiServer := server.New(cfg.ServicePort, cfg.HTTP, router)

	// Registration is best effort so the API also runs without an agent.
	svc := consul.HTTPService(cfg.ServiceName, cfg.ServiceHost, cfg.ServicePort, "api", "social")
	consulClient, err := consul.NewClient(cfg.Consul)
	if err == nil {
		// Deregister any existing instance with same ID (cleanup from previous crashes)
		_ = consulClient.Deregister(svc.ID)
		err = consulClient.Register(svc)
	}
	if err != nil {
		log.Warn("Consul registration skipped", "error", err)
		consulClient = nil
	} else {
		log.Info("Registered with Consul", "service_id", svc.ID)
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, consulClient, svc.ID, log, done)

	log.Info("Social API listening", "addr", apiServer.Addr)
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete.")
}
