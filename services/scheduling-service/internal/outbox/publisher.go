package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/kafkax"
	otelx "github.com/slotbook/slotbook/libs/otel"
)

type Publisher struct {
	pool        *db.Pool
	repo        *Repository
	logger      *slog.Logger
	brokers     []string
	topicPrefix string
	pollEvery   time.Duration
	batchSize   int
	retention   time.Duration
}

// PublisherConfig tunes the relay. Retention <= 0 keeps published rows
// forever.
type PublisherConfig struct {
	Brokers     string
	TopicPrefix string
	PollEvery   time.Duration
	BatchSize   int
	Retention   time.Duration
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:        pool,
		repo:        repo,
		logger:      logger,
		brokers:     kafkax.SplitBrokers(cfg.Brokers),
		topicPrefix: cfg.TopicPrefix,
		pollEvery:   cfg.PollEvery,
		batchSize:   cfg.BatchSize,
		retention:   cfg.Retention,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	var lastPrune time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.retention > 0 && time.Since(lastPrune) >= time.Hour {
				p.prune(ctx)
				lastPrune = time.Now()
			}
			if n, err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			} else if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, p.message(ctx, r))
		ids = append(ids, r.ID)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	return len(records), tx.Commit(ctx)
}

func (p *Publisher) prune(ctx context.Context) {
	n, err := p.repo.PrunePublished(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.logger.Warn("outbox prune failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox pruned", "deleted", n)
	}
}

// message keys by aggregate id so every event of one appointment lands on
// the same partition in order.
func (p *Publisher) message(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic:   kafkax.Topic(p.topicPrefix, r.EventType),
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.EventHeaders(r.EventID, r.EventType),
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
