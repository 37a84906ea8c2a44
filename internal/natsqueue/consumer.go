package natsqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"socialgraph/internal/events"
	"socialgraph/internal/telemetry"
)

const fetchBatch = 10

// Consumer pulls action events from a durable consumer and applies the
// handler's disposition: Ack acks, Requeue naks with a growing delay,
// DeadLetter parks the message on the DLQ subject and terminates it.
type Consumer struct {
	client   *Client
	consumer jetstream.Consumer
	handler  events.Handler
	group    string
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewConsumer binds to the durable consumer named group, creating it when
// missing. Workers sharing a group share the work.
func NewConsumer(ctx context.Context, client *Client, group string, handler events.Handler, logger *slog.Logger) (*Consumer, error) {
	cons, err := client.js.CreateOrUpdateConsumer(ctx, client.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       group,
		FilterSubject: client.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       client.cfg.AckWait,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		// the handler decides when to give up
		MaxDeliver: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure consumer %s: %w", group, err)
	}

	return &Consumer{
		client:   client,
		consumer: cons,
		handler:  handler,
		group:    group,
		tracer:   telemetry.Tracer("socialgraph/natsqueue"),
		logger:   logger,
	}, nil
}

// Start fetches and processes messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting to consume messages",
		"stream", c.client.cfg.Stream,
		"subject", c.client.cfg.Subject,
		"group", c.group)

	for {
		if ctx.Err() != nil {
			c.logger.Info("Consumer shutting down...")
			return nil
		}

		batch, err := c.consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, nats.ErrConnectionClosed) {
				return fmt.Errorf("jetstream fetch: %w", err)
			}
			c.logger.Warn("Fetch failed", "error", err)
			continue
		}
		for msg := range batch.Messages() {
			c.processMessage(ctx, msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Fetch batch ended with error", "error", err)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg jetstream.Msg) {
	d := events.Delivery{Payload: msg.Data(), Attempt: 1}
	source := msg.Subject()
	if meta, err := msg.Metadata(); err == nil {
		d.Attempt = int(meta.NumDelivered)
		source = fmt.Sprintf("%s/%d", meta.Stream, meta.Sequence.Stream)
	}

	ctx = telemetry.Extract(ctx, propagation.HeaderCarrier(msg.Headers()))
	ctx, span := c.tracer.Start(ctx, "notifier.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", msg.Subject()),
			attribute.Int("delivery.attempt", d.Attempt),
		))
	defer span.End()

	disposition := c.handler.HandleDelivery(ctx, d)
	span.SetAttributes(attribute.String("disposition", disposition.String()))

	var err error
	switch disposition {
	case events.Ack:
		err = msg.Ack()

	case events.Requeue:
		err = msg.NakWithDelay(RedeliveryDelay(d.Attempt))

	case events.DeadLetter:
		if perr := c.park(ctx, msg, d, source); perr != nil {
			c.logger.Error("Failed to park message, will redeliver",
				"source", source,
				"error", perr)
			err = msg.NakWithDelay(RedeliveryDelay(d.Attempt))
			break
		}
		err = msg.Term()
	}
	if err != nil {
		c.logger.Error("Failed to settle message",
			"source", source,
			"disposition", disposition.String(),
			"error", err)
	}
}

func (c *Consumer) park(ctx context.Context, msg jetstream.Msg, d events.Delivery, source string) error {
	parked, err := events.Park(d, source, c.group)
	if err != nil {
		return fmt.Errorf("marshal DLQ record: %w", err)
	}
	dlq := nats.NewMsg(DLQSubject(c.client.cfg.Subject))
	dlq.Data = parked
	for k, v := range msg.Headers() {
		dlq.Header[k] = v
	}
	if _, err := c.client.js.PublishMsg(ctx, dlq); err != nil {
		return err
	}

	c.logger.Warn("Action event sent to DLQ",
		"source", source,
		"attempt", d.Attempt,
		"dlq_subject", dlq.Subject)
	return nil
}

// RedeliveryDelay is the nak delay before delivery attempt+1: exponential
// from 500ms, capped at 30s.
func RedeliveryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
