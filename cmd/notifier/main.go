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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"socialgraph/internal/app"
	"socialgraph/internal/config"
	"socialgraph/internal/consul"
	"socialgraph/internal/events"
	"socialgraph/internal/kafka"
	"socialgraph/internal/logger"
	"socialgraph/internal/natsqueue"
	"socialgraph/internal/notification"
	"socialgraph/internal/server"
	"socialgraph/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Notifier stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	name := cfg.ServiceName + "-notifier"

	log := logger.New(name)
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, name, cfg.Tracing.Endpoint, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	stores, err := app.OpenStores(ctx, cfg, false, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer stores.Close()
	checks := server.JoinChecks(stores.Checks)

	var tracker notification.Tracker
	if cfg.Notify.Dedupe {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rt := notification.NewRedisTracker(rdb, cfg.Redis.TTL, log)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// markers are an optimization; the database still deduplicates
			log.Warn("Redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		tracker = rt
		checks = append(checks, server.HealthCheck{Name: "redis", Check: rt.Health})
	}

	metrics := notification.NewMetrics(prometheus.DefaultRegisterer)
	handler := notification.NewFanoutConsumer(stores, stores, tracker, metrics, notification.Options{
		Dedupe:          cfg.Notify.Dedupe,
		MaxRedeliveries: cfg.Notify.MaxRedeliveries,
		BatchSize:       cfg.Notify.BatchSize,
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	queueChecks, err := startWorkers(gctx, g, cfg, handler, log)
	if err != nil {
		return err
	}
	checks = server.JoinChecks(checks, queueChecks)

	router := server.NewRouter(name, nil, log, checks...)
	srv := server.New(cfg.ServicePort, cfg.HTTP, router)

	svc := consul.HTTPService(name, cfg.ServiceHost, cfg.ServicePort, "notifier", cfg.Queue.Driver)
	consulClient, err := consul.NewClient(cfg.Consul)
	if err == nil {
		err = consulClient.Register(svc)
	}
	if err != nil {
		log.Warn("Consul registration skipped", "error", err)
	} else {
		defer func() {
			if err := consulClient.Deregister(svc.ID); err != nil {
				log.Error("Failed to deregister from Consul", "error", err)
			}
		}()
	}

	g.Go(func() error {
		log.Info("Notifier HTTP listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("Notifier started",
		"workers", cfg.Notify.Workers,
		"queue", cfg.Queue.Driver,
		"dedupe", cfg.Notify.Dedupe)

	err = g.Wait()
	log.Info("Notifier exiting")
	return err
}

// startWorkers launches NOTIFY_WORKERS consumers on g. Workers share one
// handler; each owns its own broker consumer.
func startWorkers(ctx context.Context, g *errgroup.Group, cfg *config.Config, handler events.Handler, log *slog.Logger) ([]server.HealthCheck, error) {
	switch cfg.Queue.Driver {
	case "kafka":
		kcfg := kafka.NewConfig(cfg.Kafka)
		dlq, err := kafka.NewProducer(kcfg, log)
		if err != nil {
			return nil, fmt.Errorf("create DLQ producer: %w", err)
		}
		consumers := make([]*kafka.Consumer, 0, cfg.Notify.Workers)
		for i := range cfg.Notify.Workers {
			c, err := kafka.NewConsumer(kcfg, handler, dlq, log.With("worker", i))
			if err != nil {
				for _, started := range consumers {
					started.Close()
				}
				dlq.Close()
				return nil, err
			}
			consumers = append(consumers, c)
		}

		remaining := make(chan struct{}, len(consumers))
		for _, c := range consumers {
			g.Go(func() error {
				defer func() { remaining <- struct{}{} }()
				defer c.Close()
				return c.Start(ctx)
			})
		}
		g.Go(func() error {
			for range consumers {
				<-remaining
			}
			dlq.Close()
			return nil
		})
		return nil, nil

	case "nats":
		client, err := natsqueue.Connect(ctx, cfg.NATS, cfg.ServiceName+"-notifier", log)
		if err != nil {
			return nil, err
		}
		for i := range cfg.Notify.Workers {
			c, err := natsqueue.NewConsumer(ctx, client, cfg.NATS.Consumer, handler, log.With("worker", i))
			if err != nil {
				client.Close()
				return nil, err
			}
			g.Go(func() error { return c.Start(ctx) })
		}
		g.Go(func() error {
			<-ctx.Done()
			client.Close()
			return nil
		})
		return []server.HealthCheck{{Name: "nats", Check: client.Health}}, nil
	}
	return nil, fmt.Errorf("unknown QUEUE_DRIVER %q", cfg.Queue.Driver)
}
