package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox claims event ids so each event is handled once.
type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Consumer reads a group's topics and commits a message only after it was
// handled, found to be a duplicate, or ran out of attempts.
type Consumer struct {
	reader      *kafka.Reader
	logger      *slog.Logger
	inbox       Inbox
	handler     Handler
	maxAttempts int
	backoff     time.Duration
}

type Config struct {
	Brokers      string
	GroupID      string
	Topics       []string
	MaxAttempts  int
	RetryBackoff time.Duration
}

func New(logger *slog.Logger, inboxRepo Inbox, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       inboxRepo,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		c.deliver(ctx, msg)
		if ctx.Err() != nil {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// deliver retries process with doubling backoff. After maxAttempts the
// event is logged and skipped so one bad event cannot stall its partition.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.process(ctx, msg)
		if err == nil {
			return
		}
		if attempt >= c.maxAttempts {
			c.logger.Error("event abandoned", "err", err, "topic", msg.Topic, "offset", msg.Offset, "attempts", attempt)
			return
		}
		if !sleep(ctx, wait) {
			return
		}
		wait *= 2
	}
}

// process handles msg once. A returned error means the event should be
// retried; its inbox claim has already been released.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" {
		c.logger.Warn("event without id ignored", "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}
	span.SetAttributes(attribute.String("messaging.message.id", meta.EventID))

	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox record failed")
		return fmt.Errorf("inbox record: %w", err)
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Warn("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		if ferr := c.inbox.Forget(ctxSpan, meta.EventID); ferr != nil {
			c.logger.Error("inbox release failed", "err", ferr, "event_id", meta.EventID)
		}
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
