// Package kafka carries action events over Kafka: an idempotent producer on
// the API side and a manual-commit consumer on the notifier side.
package kafka

import (
	"strings"

	"socialgraph/internal/config"
)

// Config holds Kafka configuration
type Config struct {
	Brokers           string
	Topic             string
	DLQTopic          string
	ConsumerGroup     string
	EnableIdempotence bool
	Acks              string
}

// NewConfig derives the client settings from the process configuration.
func NewConfig(k config.Kafka) *Config {
	return &Config{
		Brokers:           k.Brokers,
		Topic:             k.Topic,
		DLQTopic:          k.DLQTopic,
		ConsumerGroup:     k.ConsumerGroup,
		EnableIdempotence: true,  // Always enable for exactly-once
		Acks:              "all", // Wait for all replicas
	}
}

// GetBrokersList returns brokers as a slice
func (c *Config) GetBrokersList() []string {
	return strings.Split(c.Brokers, ",")
}
