package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"socialgraph/internal/events"
	"socialgraph/internal/telemetry"
)

// Consumer feeds action events to a handler and applies its disposition:
// Ack commits, DeadLetter parks the message on the DLQ topic and commits,
// Requeue seeks back so the same offset is read again after a backoff.
type Consumer struct {
	consumer *kafka.Consumer
	dlq      *Producer
	handler  events.Handler
	config   *Config
	attempts attempts
	retry    *backoff.ExponentialBackOff
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewConsumer creates a new Kafka consumer. dlq may be shared between
// consumers and is closed by the caller.
func NewConsumer(config *Config, handler events.Handler, dlq *Producer, logger *slog.Logger) (*Consumer, error) {
	// Configure Kafka consumer
	consumerConfig := &kafka.ConfigMap{
		"bootstrap.servers":  config.Brokers,
		"group.id":           config.ConsumerGroup,
		"auto.offset.reset":  "earliest", // Read from beginning if no offset
		"enable.auto.commit": false,      // Commit only after the handler settles a message
	}

	c, err := kafka.NewConsumer(consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"group", config.ConsumerGroup)

	return &Consumer{
		consumer: c,
		dlq:      dlq,
		handler:  handler,
		config:   config,
		attempts: make(attempts),
		retry:    newRetryBackoff(),
		tracer:   telemetry.Tracer("socialgraph/kafka"),
		logger:   logger,
	}, nil
}

func newRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry until the handler gives up
	b.Reset()
	return b
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.config.Topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	c.logger.Info("Starting to consume messages",
		"topic", c.config.Topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer shutting down...")
			return nil

		default:
			msg, err := c.consumer.ReadMessage(1 * time.Second)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) {
					// Timeout is not an error
					if kerr.Code() == kafka.ErrTimedOut {
						continue
					}
					if kerr.IsFatal() {
						return fmt.Errorf("kafka consumer: %w", err)
					}
				}
				c.logger.Error("Error reading message", "error", err)
				continue
			}

			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *kafka.Message) {
	key := attemptKey(msg.TopicPartition)
	d := events.Delivery{Payload: msg.Value, Attempt: c.attempts.next(key)}

	ctx = telemetry.Extract(ctx, headerCarrier{&msg.Headers})
	ctx, span := c.tracer.Start(ctx, "notifier.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", c.config.Topic),
			attribute.Int("messaging.kafka.partition", int(msg.TopicPartition.Partition)),
			attribute.Int("delivery.attempt", d.Attempt),
		))
	defer span.End()

	disposition := c.handler.HandleDelivery(ctx, d)
	span.SetAttributes(attribute.String("disposition", disposition.String()))

	switch disposition {
	case events.Ack:
		c.settle(key, msg)

	case events.DeadLetter:
		if err := c.sendToDLQ(ctx, msg, d); err != nil {
			c.logger.Error("Failed to send to DLQ, will redeliver",
				"partition", msg.TopicPartition.Partition,
				"offset", msg.TopicPartition.Offset,
				"error", err)
			c.redeliver(ctx, msg)
			return
		}
		c.settle(key, msg)

	case events.Requeue:
		c.redeliver(ctx, msg)
	}
}

// settle commits msg and forgets its delivery count.
func (c *Consumer) settle(key string, msg *kafka.Message) {
	c.attempts.done(key)
	c.retry.Reset()
	c.commitMessage(msg)
}

// redeliver waits out the backoff and rewinds the partition to msg.
func (c *Consumer) redeliver(ctx context.Context, msg *kafka.Message) {
	delay := c.retry.NextBackOff()
	if delay == backoff.Stop {
		delay = c.retry.MaxInterval
	}

	c.logger.Debug("Redelivering message",
		"partition", msg.TopicPartition.Partition,
		"offset", msg.TopicPartition.Offset,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// uncommitted; the next owner of the partition reads it again
		return
	case <-timer.C:
	}

	if err := c.consumer.Seek(msg.TopicPartition, 0); err != nil {
		c.logger.Error("Failed to seek back for redelivery",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

// sendToDLQ writes a failed message to the Dead Letter Queue and waits for
// the broker to confirm it.
func (c *Consumer) sendToDLQ(ctx context.Context, msg *kafka.Message, d events.Delivery) error {
	parked, err := events.Park(d, attemptKey(msg.TopicPartition), c.config.ConsumerGroup)
	if err != nil {
		return fmt.Errorf("marshal DLQ record: %w", err)
	}
	topic := c.config.DLQTopic
	_, err = c.dlq.deliver(ctx, &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          parked,
		Headers:        msg.Headers,
	})
	if err != nil {
		return err
	}

	c.logger.Warn("Action event sent to DLQ",
		"partition", msg.TopicPartition.Partition,
		"offset", msg.TopicPartition.Offset,
		"attempt", d.Attempt,
		"dlq_topic", c.config.DLQTopic)
	return nil
}

// commitMessage commits the Kafka offset
func (c *Consumer) commitMessage(msg *kafka.Message) {
	_, err := c.consumer.CommitMessage(msg)
	if err != nil {
		c.logger.Error("Failed to commit offset",
			"topic", *msg.TopicPartition.Topic,
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

// Close closes the consumer
func (c *Consumer) Close() {
	c.logger.Info("Closing Kafka consumer...")
	if err := c.consumer.Close(); err != nil {
		c.logger.Error("Failed to close Kafka consumer", "error", err)
		return
	}
	c.logger.Info("Kafka consumer closed")
}

// attempts counts deliveries per topic/partition/offset. Kafka has no
// per-message delivery counter, so redeliveries are tracked in process; a
// rebalance resets the count, which only delays dead-lettering.
type attempts map[string]int

func attemptKey(tp kafka.TopicPartition) string {
	topic := ""
	if tp.Topic != nil {
		topic = *tp.Topic
	}
	return fmt.Sprintf("%s/%d/%d", topic, tp.Partition, tp.Offset)
}

func (a attempts) next(key string) int {
	a[key]++
	return a[key]
}

func (a attempts) done(key string) {
	delete(a, key)
}
