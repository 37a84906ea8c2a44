package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"socialgraph/internal/events"
	"socialgraph/internal/telemetry"
)

// Producer wraps Kafka producer with helper methods
type Producer struct {
	producer *kafka.Producer
	config   *Config
	logger   *slog.Logger
}

var _ events.Publisher = (*Producer)(nil)

// NewProducer creates a new Kafka producer
func NewProducer(config *Config, logger *slog.Logger) (*Producer, error) {
	// Configure producer with idempotence enabled
	producerConfig := &kafka.ConfigMap{
		"bootstrap.servers":                     config.Brokers,
		"enable.idempotence":                    config.EnableIdempotence, // Prevents duplicates in Kafka
		"acks":                                  config.Acks,              // Wait for all replicas
		"max.in.flight.requests.per.connection": 5,                        // Required for idempotence
		"retries":                               2147483647,               // Max retries
	}

	p, err := kafka.NewProducer(producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	producer := &Producer{
		producer: p,
		config:   config,
		logger:   logger,
	}

	// Start delivery report handler in background
	go producer.handleDeliveryReports()

	logger.Info("Kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"idempotence", config.EnableIdempotence)

	return producer, nil
}

// Publish writes the event to the action events topic and waits for the
// broker to confirm it. The partition key keeps all events for one target
// user on one partition, so a follow decision never overtakes its request.
func (p *Producer) Publish(ctx context.Context, env events.Envelope) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(env.PartitionKey),
		Value: env.Payload,
	}
	telemetry.Inject(ctx, headerCarrier{&msg.Headers})

	m, err := p.deliver(ctx, msg)
	if err != nil {
		return err
	}
	p.logger.Debug("Action event published to Kafka",
		"topic", *m.TopicPartition.Topic,
		"partition", m.TopicPartition.Partition,
		"offset", m.TopicPartition.Offset)
	return nil
}

// deliver produces msg and waits for its delivery report.
func (p *Producer) deliver(ctx context.Context, msg *kafka.Message) (*kafka.Message, error) {
	// Buffered so a delivery report arriving after ctx is done never blocks
	// librdkafka.
	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, deliveryChan); err != nil {
		return nil, fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return nil, fmt.Errorf("unexpected delivery event: %v", e)
		}
		if m.TopicPartition.Error != nil {
			return nil, fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
		return m, nil
	}
}

// handleDeliveryReports processes asynchronous delivery reports
func (p *Producer) handleDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("Delivery failed",
					"topic", *ev.TopicPartition.Topic,
					"error", ev.TopicPartition.Error)
			} else {
				p.logger.Debug("Message delivered",
					"topic", *ev.TopicPartition.Topic,
					"partition", ev.TopicPartition.Partition,
					"offset", ev.TopicPartition.Offset)
			}
		case kafka.Error:
			p.logger.Warn("Kafka producer error", "error", ev)
		}
	}
}

// Flush waits for all messages to be delivered
func (p *Producer) Flush(timeoutMs int) int {
	remaining := p.producer.Flush(timeoutMs)
	if remaining > 0 {
		p.logger.Warn("Failed to flush all messages",
			"remaining", remaining)
	}
	return remaining
}

// Close closes the producer
func (p *Producer) Close() {
	p.logger.Info("Closing Kafka producer...")

	// Flush remaining messages (10 second timeout)
	remaining := p.Flush(10000)
	if remaining > 0 {
		p.logger.Error("Some messages were not delivered",
			"count", remaining)
	}

	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
