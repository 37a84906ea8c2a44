package config

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration shared by every binary. Each binary
// reads only the sections it needs.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"social"`
	ServiceHost string `envconfig:"SERVICE_HOST" default:"localhost"`
	ServicePort int    `envconfig:"SERVICE_PORT" default:"8085"`

	HTTP     HTTP     `envconfig:"HTTP"`
	Store    Store    `envconfig:"STORE"`
	Queue    Queue    `envconfig:"QUEUE"`
	Kafka    Kafka    `envconfig:"KAFKA"`
	NATS     NATS     `envconfig:"NATS"`
	Redis    Redis    `envconfig:"REDIS"`
	Consul   Consul   `envconfig:"CONSUL"`
	Notify   Notify   `envconfig:"NOTIFY"`
	Follow   Follow   `envconfig:"FOLLOW"`
	Tracing  Tracing  `envconfig:"OTEL"`
	Database Database `envconfig:"DATABASE"`
}

type HTTP struct {
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	CORSOrigins  []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
}

// Store selects the relationship and notification backend.
type Store struct {
	Driver string `envconfig:"DRIVER" default:"postgres"`
}

// Queue selects the broker used for action events.
type Queue struct {
	Driver string `envconfig:"DRIVER" default:"kafka"`
}

type Kafka struct {
	Brokers       string `envconfig:"BROKERS" default:"localhost:9092"`
	Topic         string `envconfig:"TOPIC_ACTION_EVENTS" default:"action-events"`
	DLQTopic      string `envconfig:"TOPIC_ACTION_DLQ" default:"action-events-dlq"`
	ConsumerGroup string `envconfig:"CONSUMER_GROUP" default:"notifier-group"`
}

// BrokersList returns the broker addresses as a slice.
func (k Kafka) BrokersList() []string {
	return strings.Split(k.Brokers, ",")
}

type NATS struct {
	URL     string        `envconfig:"URL" default:"nats://localhost:4222"`
	Stream  string        `envconfig:"STREAM" default:"ACTIONS"`
	Subject string        `envconfig:"SUBJECT" default:"actions.events"`
	AckWait time.Duration `envconfig:"ACK_WAIT" default:"30s"`
	// Consumer is the durable consumer shared by notifier workers.
	Consumer string `envconfig:"CONSUMER" default:"notifier"`
}

type Redis struct {
	Addr     string        `envconfig:"ADDR" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	TTL      time.Duration `envconfig:"PROCESSED_TTL" default:"24h"`
}

type Consul struct {
	Addr  string `envconfig:"HTTP_ADDR" default:"localhost:8500"`
	Token string `envconfig:"HTTP_TOKEN"`
}

// Notify tunes the fan-out workers.
type Notify struct {
	Workers         int  `envconfig:"WORKERS" default:"4"`
	Dedupe          bool `envconfig:"DEDUPE" default:"true"`
	MaxRedeliveries int  `envconfig:"MAX_REDELIVERIES" default:"10"`
	BatchSize       int  `envconfig:"BATCH_SIZE" default:"500"`
}

type Follow struct {
	AutoAcceptPublic bool `envconfig:"AUTO_ACCEPT_PUBLIC" default:"false"`
}

type Tracing struct {
	Endpoint string `envconfig:"EXPORTER_OTLP_ENDPOINT"`
}

type Database struct {
	URL      string `envconfig:"URL"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"20"`
}

// Load reads the environment (and a .env file when present) into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RequiredEnv lists the variables that have no usable default for the
// selected drivers.
func (c *Config) RequiredEnv() []string {
	var vars []string
	if c.Store.Driver == "postgres" {
		vars = append(vars, "DATABASE_URL")
	}
	return vars
}

func (c *Config) validate() error {
	if err := ValidateEnv(c.RequiredEnv()); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Queue.Driver {
	case "kafka", "nats":
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.Notify.Workers <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive, got %d", c.Notify.Workers)
	}
	if c.Notify.BatchSize <= 0 {
		return fmt.Errorf("NOTIFY_BATCH_SIZE must be positive, got %d", c.Notify.BatchSize)
	}
	return nil
}
