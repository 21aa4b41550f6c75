package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/medclinic/clinic/internal/platform/db"
	"github.com/medclinic/clinic/internal/platform/telemetry"
)

// Store is the persistence the publisher drains.
type Store interface {
	FetchUnpublished(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Brokers   []string
	Topic     string
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays outbox rows to Kafka at least once. Rows are marked
// published in the same transaction that locked them.
type Publisher struct {
	store     Store
	tx        db.Transactor
	writer    MessageWriter
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	pollEvery time.Duration
	batchSize int
}

// NewKafkaWriter builds the writer used in production. Messages are keyed by
// aggregate id so one appointment's events stay ordered on a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewPublisher(store Store, tx db.Transactor, writer MessageWriter, logger zerolog.Logger, metrics *telemetry.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		store:     store,
		tx:        tx,
		writer:    writer,
		logger:    logger,
		metrics:   metrics,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run polls until ctx is cancelled, then closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("close kafka writer")
		}
	}()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_every", p.pollEvery).Int("batch_size", p.batchSize).Msg("outbox publisher started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher stopped")
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				p.logger.Error().Err(err).Msg("outbox publish failed")
				continue
			}
			if n > 0 {
				p.logger.Debug().Int("count", n).Msg("outbox events published")
			}
		}
	}
}

// PublishBatch sends one batch and returns how many events went out.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.tx.InTx(ctx, func(ctx context.Context) error {
		records, err := p.store.FetchUnpublished(ctx, p.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, toMessage(ctx, r))
			ids = append(ids, r.ID)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write kafka messages: %w", err)
		}
		if err := p.store.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.metrics.OutboxPublished(published)
	return published, nil
}

func toMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := telemetry.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Time:  r.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.EventID.String())},
			{Key: "event_type", Value: []byte(r.EventType)},
			{Key: "aggregate_type", Value: []byte(r.AggregateType)},
		},
	}
	msg.Headers = InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
