package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/identity"
)

// callerKey limits authenticated callers per user and everyone else per IP.
func callerKey(r *http.Request) string {
	if role, ok := identity.RoleFrom(r.Context()); ok {
		if id := identity.PrincipalOf(role).UserID; id != "" {
			return "user:" + id
		}
	}
	return "ip:" + httpx.ClientIP(r)
}

// rateLimiter guards the write endpoints, backed by Redis when REDIS_ADDR
// is set and by process memory otherwise.
func rateLimiter(logger *slog.Logger) (httpx.Middleware, func()) {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 30)
	if limitPerMinute <= 0 {
		logger.Info("rate limiting disabled")
		return nil, func() {}
	}

	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute).KeyedBy(callerKey)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
		return rl.Middleware(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:scheduling")).KeyedBy(callerKey)
	logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), func() { _ = rdb.Close() }
}
