// Package app wires configuration to concrete stores and queues for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"socialgraph/internal/config"
	"socialgraph/internal/database"
	"socialgraph/internal/events"
	"socialgraph/internal/kafka"
	"socialgraph/internal/memstore"
	"socialgraph/internal/natsqueue"
	"socialgraph/internal/postgres"
	"socialgraph/internal/server"
	"socialgraph/internal/social"
)

// Backend is everything the services read and write. Both the Postgres and
// the in-memory store implement all of it.
type Backend interface {
	social.RelationshipStore
	social.NotificationStore
	social.AccountDirectory
	social.ContentDirectory
	social.LikeStore
	social.CommentStore
}

// Stores is an opened backend plus its health check and cleanup.
type Stores struct {
	Backend
	Checks []server.HealthCheck
	close  func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores opens the backend selected by STORE_DRIVER. The Postgres schema
// is applied when migrate is set.
func OpenStores(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		return &Stores{Backend: memstore.New()}, nil

	case "postgres":
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &Stores{
			Backend: postgres.New(db),
			Checks:  []server.HealthCheck{{Name: "database", Check: db.Health}},
			close:   db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
}

// Queue is an opened event publisher plus its cleanup.
type Queue struct {
	Publisher events.Publisher
	Checks    []server.HealthCheck
	close     func()
}

func (q *Queue) Close() {
	if q.close != nil {
		q.close()
	}
}

// OpenQueue connects the publisher selected by QUEUE_DRIVER.
func OpenQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Queue, error) {
	switch cfg.Queue.Driver {
	case "kafka":
		p, err := kafka.NewProducer(kafka.NewConfig(cfg.Kafka), logger)
		if err != nil {
			return nil, err
		}
		return &Queue{Publisher: p, close: p.Close}, nil

	case "nats":
		client, err := natsqueue.Connect(ctx, cfg.NATS, cfg.ServiceName, logger)
		if err != nil {
			return nil, err
		}
		return &Queue{
			Publisher: natsqueue.NewPublisher(client),
			Checks:    []server.HealthCheck{{Name: "nats", Check: client.Health}},
			close:     client.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown QUEUE_DRIVER %q", cfg.Queue.Driver)
}
