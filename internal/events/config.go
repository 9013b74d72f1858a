// Package events publishes load lifecycle notifications to Kafka.
//
// Downstream consumers (study dashboards, archival jobs) subscribe to the
// load-completed topic instead of polling the database. Publishing is an
// optional feature: when no brokers are configured the publisher becomes a
// no-op, so a workstation load without Kafka still works.
package events

import (
	"errors"
	"time"

	"github.com/tracekit-io/tracekit/internal/config"
)

const (
	defaultTopic        = "tracekit.load.completed"
	defaultWriteTimeout = 10 * time.Second
	defaultBatchSize    = 1
)

// ErrTopicEmpty indicates brokers are configured but the topic name is empty.
var ErrTopicEmpty = errors.New("kafka topic cannot be empty")

// Config holds Kafka publisher configuration.
// Pure configuration only - no runtime dependencies.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// LoadPublisherConfig loads publisher configuration from environment variables.
// An empty KAFKA_BROKERS disables publishing entirely.
func LoadPublisherConfig() *Config {
	return &Config{
		Brokers:      config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", "")),
		Topic:        config.GetEnvStr("KAFKA_LOAD_TOPIC", defaultTopic),
		WriteTimeout: config.GetEnvDuration("KAFKA_WRITE_TIMEOUT", defaultWriteTimeout),
	}
}

// Enabled reports whether any broker is configured.
func (c *Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Validate validates the publisher configuration. A disabled config is valid.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}

	if c.Topic == "" {
		return ErrTopicEmpty
	}

	return nil
}
