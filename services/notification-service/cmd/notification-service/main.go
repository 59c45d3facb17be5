package main

import (
	"context"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/libs/kafkax"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/notification-service/internal/consumer"
	"github.com/slotbook/slotbook/services/notification-service/internal/email"
	"github.com/slotbook/slotbook/services/notification-service/internal/inbox"
	"github.com/slotbook/slotbook/services/notification-service/internal/notify"
	"github.com/slotbook/slotbook/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.PoolOptions{MaxConns: int32(config.Int("DB_MAX_CONNS", 5))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := db.Migrate(pool, logger); err != nil {
			logger.Error("migration failed", "err", err)
			panic(err)
		}
	}

	loc, err := time.LoadLocation(config.String("SCHEDULING_TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("invalid SCHEDULING_TIMEZONE", "err", err)
		panic(err)
	}

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@slotbook.local"),
	)
	notifier := notify.New(sender, storage.NewRepository(pool), logger, loc)

	brokers := config.String("KAFKA_BROKERS", "")
	prefix := config.String("KAFKA_TOPIC_PREFIX", "")
	var topics []string
	for _, eventType := range notify.EventTypes() {
		topics = append(topics, kafkax.Topic(prefix, eventType))
	}

	if len(kafkax.SplitBrokers(brokers)) == 0 {
		logger.Warn("event consumer disabled (no kafka brokers configured)")
	} else {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers:      brokers,
			GroupID:      config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:       topics,
			MaxAttempts:  config.Int("CONSUMER_MAX_ATTEMPTS", 5),
			RetryBackoff: config.Duration("CONSUMER_RETRY_BACKOFF", 500*time.Millisecond),
		}, func(ctx context.Context, msg kafka.Message) error {
			return notifier.Handle(ctx, kafkax.ExtractEventMeta(msg).EventType, msg.Value)
		})
		go eventConsumer.Run(ctx)
		logger.Info("event consumer started", "topics", topics)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		panic(err)
	}
}
