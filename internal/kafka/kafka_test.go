package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"socialgraph/internal/config"
	"socialgraph/internal/telemetry"
)

func TestNewConfig(t *testing.T) {
	c := NewConfig(config.Kafka{
		Brokers:       "b1:9092,b2:9092",
		Topic:         "action-events",
		DLQTopic:      "action-events-dlq",
		ConsumerGroup: "notifier-group",
	})
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, c.GetBrokersList())
	assert.True(t, c.EnableIdempotence)
	assert.Equal(t, "all", c.Acks)
}

func TestAttemptsCountPerOffset(t *testing.T) {
	topic := "action-events"
	a := make(attempts)
	first := attemptKey(kafka.TopicPartition{Topic: &topic, Partition: 1, Offset: 42})
	other := attemptKey(kafka.TopicPartition{Topic: &topic, Partition: 1, Offset: 43})

	assert.Equal(t, 1, a.next(first))
	assert.Equal(t, 2, a.next(first))
	assert.Equal(t, 1, a.next(other))

	a.done(first)
	assert.Equal(t, 1, a.next(first))
	assert.Equal(t, "action-events/1/42", first)
}

func TestRetryBackoffNeverStops(t *testing.T) {
	b := newRetryBackoff()
	var last time.Duration
	for range 50 {
		last = b.NextBackOff()
	}
	assert.LessOrEqual(t, last, 45*time.Second) // MaxInterval plus jitter
	assert.Greater(t, last, time.Duration(0))
}

func TestHeaderCarrierPropagatesTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa},
		SpanID:     trace.SpanID{0xb},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var headers []kafka.Header
	telemetry.Inject(ctx, headerCarrier{&headers})
	telemetry.Inject(ctx, headerCarrier{&headers})
	assert.Len(t, headers, 1, "setting twice replaces the header")

	got := trace.SpanContextFromContext(telemetry.Extract(context.Background(), headerCarrier{&headers}))
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, []string{"traceparent"}, headerCarrier{&headers}.Keys())
}
