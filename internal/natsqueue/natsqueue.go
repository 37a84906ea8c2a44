// Package natsqueue carries action events over NATS JetStream. It is the
// alternative to the Kafka adapter, selected with QUEUE_DRIVER=nats.
package natsqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/propagation"

	"socialgraph/internal/config"
	"socialgraph/internal/events"
	"socialgraph/internal/telemetry"
)

// dedupeWindow bounds how long JetStream remembers message ids.
const dedupeWindow = 2 * time.Minute

// Client owns the connection and the stream holding action events and
// their dead letters.
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    config.NATS
	logger *slog.Logger
}

// DLQSubject is where dead-lettered events are parked.
func DLQSubject(subject string) string {
	return subject + ".dlq"
}

// Connect dials NATS and creates or updates the stream.
func Connect(ctx context.Context, cfg config.NATS, name string, logger *slog.Logger) (*Client, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Subject, DLQSubject(cfg.Subject)},
		Storage:    jetstream.FileStorage,
		Duplicates: dedupeWindow,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	logger.Info("JetStream connected",
		"url", cfg.URL,
		"stream", cfg.Stream,
		"subject", cfg.Subject)
	return &Client{nc: nc, js: js, cfg: cfg, logger: logger}, nil
}

// Health reports the connection state for /health.
func (c *Client) Health(context.Context) map[string]string {
	if !c.nc.IsConnected() {
		return map[string]string{"status": "down", "state": c.nc.Status().String()}
	}
	return map[string]string{"status": "up", "server": c.nc.ConnectedUrl()}
}

// Close drains the connection.
func (c *Client) Close() {
	c.logger.Info("Closing NATS connection")
	if err := c.nc.Drain(); err != nil {
		c.logger.Error("Failed to drain NATS connection", "error", err)
	}
}

// Publisher publishes action events with the dedupe id as the JetStream
// message id, so a republish inside the dedupe window is dropped by the
// server.
type Publisher struct {
	client *Client
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, env events.Envelope) error {
	msg := nats.NewMsg(p.client.cfg.Subject)
	msg.Data = env.Payload
	msg.Header.Set("Partition-Key", env.PartitionKey)
	telemetry.Inject(ctx, propagation.HeaderCarrier(msg.Header))

	ack, err := p.client.js.PublishMsg(ctx, msg, jetstream.WithMsgID(env.DedupeID))
	if err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Subject, err)
	}
	if ack.Duplicate {
		p.client.logger.Debug("JetStream dropped duplicate action event",
			"stream", ack.Stream,
			"sequence", ack.Sequence)
	}
	return nil
}
