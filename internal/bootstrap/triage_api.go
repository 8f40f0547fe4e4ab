package bootstrap

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"triage_server/adapter/in/http"
	"triage_server/infra/database"
	"triage_server/infra/middleware"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
	"triage_server/pkg/ratelimit"
	"triage_server/pkg/resilience"
)

const (
	webhookBodyLimit = 64 * 1024
	messageSidTTL    = 24 * time.Hour
	inboundWindow    = time.Minute
)

// NewAPI builds the fiber app over deps.
func NewAPI(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		AppName:               "triage",
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             1 * 1024 * 1024,

		// go-json: 표준 encoding/json 대비 2~3배 빠른 JSON 직렬화
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(deps.Latency))

	// Health check (no auth required)
	checks := map[string]http.HealthChecker{"store": deps.Store.Backend()}
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres
	}
	if deps.Mongo != nil {
		checks["mongodb"] = http.PingFunc(func(ctx context.Context) error { return deps.Mongo.Ping(ctx, nil) })
	}
	http.NewHealthHandler(checks, deps.BackendInfo()).Register(app)

	// Twilio webhook
	guards := []fiber.Handler{middleware.MaxBodySize(webhookBodyLimit)}
	if cfg.TwilioValidateSignature {
		guards = append(guards, middleware.TwilioSignature(cfg.TwilioAuthToken, cfg.PublicBaseURL))
	} else {
		logger.Warn("Twilio signature validation disabled")
	}
	webhook := http.NewWebhookHandler(
		deps.Engine,
		ratelimit.NewDeduplicator(deps.Redis, "wa:sid", messageSidTTL),
		ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.InboundRateLimit, inboundWindow),
		logger.Component("webhook"),
	)
	webhook.Register(app, guards...)

	// Admin API
	stats := map[string]http.StatsFunc{
		"backends": func() any { return deps.BackendInfo() },
		"webhook":  func() any { return webhook.GetMetrics() },
		"dispatch": func() any { return deps.Dispatcher.Metrics().ToMap() },
		"breakers": func() any { return resilience.States() },
		"requests": func() any {
			out := make(map[string]any)
			for name, s := range deps.Latency.AllStats() {
				out[name] = s.ToMap()
			}
			return out
		},
	}
	if deps.Postgres != nil {
		stats["postgres_pool"] = func() any { return deps.Postgres.Stats() }
		stats["postgres_sql"] = func() any { return metrics.GetDBPoolStats(deps.Postgres.DB.DB) }
	}
	if deps.Redis != nil {
		stats["redis_pool"] = func() any { return database.GetRedisStats(deps.Redis) }
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}
	http.NewAdminHandler(http.AdminDeps{
		Store:      deps.Store,
		Triage:     deps.Engine,
		FollowUps:  deps.Scheduler,
		Dispatcher: deps.Dispatcher,
		Tickets:    deps.Tickets,
		Archive:    deps.Archive,
		Stats:      stats,
	}).Register(app, middleware.AdminAuth(cfg.AdminJWTSecret))

	logger.Info("API server initialized (store=%s)", deps.Store.Backend().Name())
	return app
}
