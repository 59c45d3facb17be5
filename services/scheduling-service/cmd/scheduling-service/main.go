package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/libs/kafkax"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/handlers"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/identity"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/ledger"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/reservation"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/slots"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8083")
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
	pool, err := db.Open(ctx, dbURL, db.PoolOptions{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
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

	slotRepo := storage.NewSlotRepository(pool, config.Duration("SCHEDULING_LOCK_TIMEOUT", 3*time.Second))
	appointmentRepo := storage.NewAppointmentRepository(pool)
	practitionerRepo := storage.NewPractitionerRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:     brokers,
		TopicPrefix: config.String("KAFKA_TOPIC_PREFIX", ""),
		PollEvery:   config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize:   config.Int("OUTBOX_BATCH_SIZE", 50),
		Retention:   config.Duration("OUTBOX_RETENTION", 7*24*time.Hour),
	})
	go publisher.Run(ctx)

	slotService := slots.NewService(slotRepo, logger)
	appointments := ledger.NewService(slotRepo, appointmentRepo, reservation.NewReleaser(slotRepo), outboxRepo, logger)
	coordinator := reservation.NewCoordinator(slotRepo, appointments, outboxRepo, logger, reservation.WithLocation(loc))

	api, err := handlers.New(slotService, coordinator, appointments, loc, logger)
	if err != nil {
		panic(err)
	}

	mode := strings.ToLower(config.String("IDENTITY_MODE", identity.ModeJWT))
	verifier := auth.Verifier{Secret: config.String("JWT_SECRET", "")}
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		verifier.JWKS = auth.NewJWKSClient(jwksURL, config.Duration("JWKS_CACHE_TTL", 5*time.Minute))
	}
	if mode == identity.ModeJWT && verifier.Secret == "" && verifier.JWKS == nil {
		logger.Warn("no JWT_SECRET or JWKS_URL configured; every request is anonymous")
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	rateLimit, closeLimiter := rateLimiter(logger)
	defer closeLimiter()
	api.Register(mux, rateLimit)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			ExposedHeaders: []string{httpx.RequestIDHeader, "Retry-After"},
			MaxAge:         config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		identity.Middleware(identity.Config{
			Mode:      mode,
			Verifier:  verifier,
			Directory: practitionerRepo,
			Logger:    logger,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("scheduling configured", "timezone", loc.String(), "identity_mode", mode)
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		panic(err)
	}
}
