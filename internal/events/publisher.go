package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// LoadCompleted is the payload emitted after a peak annotation load finishes,
// whether it committed or rolled back. Consumers key on the file checksum, so
// re-publishing the same file is naturally idempotent on their side.
type LoadCompleted struct {
	File          string    `json:"file"`
	Checksum      string    `json:"checksum"`
	Format        string    `json:"format"`
	Mode          string    `json:"mode"`
	Committed     bool      `json:"committed"`
	AlreadyLoaded bool      `json:"alreadyLoaded"`
	PeakGroups    int       `json:"peakGroups"`
	PeakData      int       `json:"peakData"`
	ErrorCount    int       `json:"errorCount"`
	WarningCount  int       `json:"warningCount"`
	CompletedAt   time.Time `json:"completedAt"`
}

// Publisher writes load notifications to a Kafka topic. A Publisher built
// from a disabled Config publishes nothing and never fails.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher from the given configuration.
// When no brokers are configured the returned publisher is a no-op.
func NewPublisher(cfg *Config, logger *slog.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled() {
		logger.Debug("Kafka brokers not configured, load events disabled")

		return &Publisher{logger: logger}, nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    defaultBatchSize,
		// The load topic is provisioned lazily on first use.
		AllowAutoTopicCreation: true,
	}

	logger.Info("Kafka load event publisher enabled",
		slog.Any("brokers", cfg.Brokers),
		slog.String("topic", cfg.Topic),
	)

	return &Publisher{writer: writer, logger: logger}, nil
}

// Enabled reports whether this publisher actually writes to Kafka.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// PublishLoadCompleted emits one load-completed event, keyed by file checksum.
func (p *Publisher) PublishLoadCompleted(ctx context.Context, event LoadCompleted) error {
	if p.writer == nil {
		return nil
	}

	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode load event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Checksum),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish load event: %w", err)
	}

	p.logger.Debug("Published load event",
		slog.String("file", event.File),
		slog.String("checksum", event.Checksum),
	)

	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}

	return p.writer.Close()
}
