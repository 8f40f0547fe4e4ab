package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"triage_server/adapter/in/worker"
	"triage_server/adapter/out/llm"
	"triage_server/adapter/out/messaging"
	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/persistence"
	"triage_server/adapter/out/store"
	"triage_server/config"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/followup"
	"triage_server/core/service/reply"
	"triage_server/core/service/ticket"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/pkg/keylock"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
)

const latencyWindow = 1000

// Dependencies is the shared object graph of the api and worker modes.
type Dependencies struct {
	Config *config.Config

	// Clients (nil when not configured)
	Redis    *redis.Client
	Postgres *database.Postgres
	Mongo    *mongo.Client

	// Storage
	Store   *store.Store
	Tickets *ticket.Service
	Archive out.TranscriptArchive

	// Outbound. Sender talks to Twilio directly; Messenger is what the core uses and is
	// the Redis stream when Redis is configured.
	Sender    out.ReplyMessenger
	Messenger out.ReplyMessenger
	Polisher  out.ReplyPolisher

	// Services
	Locks      *keylock.KeyLock
	Renderer   *reply.Renderer
	Scheduler  *followup.Scheduler
	Engine     *triage.Engine
	Dispatcher *worker.Dispatcher

	Latency *metrics.LatencyRegistry
}

// NewDependencies connects the configured backends and wires the core. Unreachable
// optional backends are logged and replaced by their in-memory fallback.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config:  cfg,
		Locks:   keylock.New(),
		Latency: metrics.NewLatencyRegistry(latencyWindow),
	}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Redis
	var backend store.Backend = store.NewMemoryBackend()
	if cfg.RedisURL != "" {
		client, err := database.NewRedis(ctx, cfg.RedisURL, nil)
		if err != nil {
			logger.Warn("Redis connection failed, using memory store: %v", err)
		} else {
			deps.Redis = client
			cleanups = append(cleanups, func() { client.Close() })
			backend = store.NewRedisBackend(client, nil, logger.Component("redis_backend"))
			logger.Info("Redis connected")
		}
	}
	deps.Store = store.New(backend, &store.Config{HistoryLimit: cfg.HistoryLimit}, logger.Component("store"))

	// PostgreSQL (tickets)
	var ticketRepo domain.TicketRepository = persistence.NewMemoryTicketAdapter()
	if cfg.DatabaseURL != "" {
		pg, err := database.NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			logger.Warn("PostgreSQL connection failed, tickets kept in memory: %v", err)
		} else {
			adapter := persistence.NewTicketAdapter(pg.DB)
			if err := adapter.EnsureSchema(ctx); err != nil {
				pg.Close()
				cleanup()
				return nil, nil, err
			}
			deps.Postgres = pg
			cleanups = append(cleanups, pg.Close)
			ticketRepo = adapter
			logger.Info("PostgreSQL connected")
		}
	}
	deps.Tickets = ticket.NewService(ticketRepo, cfg.AutoClaimMinScore)

	// MongoDB (handoff transcripts)
	deps.Archive = mongodb.NewMemoryTranscripts()
	if cfg.MongoDBURL != "" {
		client, db, err := mongodb.NewClient(ctx, cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed, transcripts kept in memory: %v", err)
		} else {
			deps.Mongo = client
			cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })
			adapter := mongodb.NewTranscriptAdapter(db)
			if err := adapter.EnsureIndexes(ctx); err != nil {
				logger.Warn("Failed to ensure transcript indexes: %v", err)
			}
			deps.Archive = adapter
			logger.Info("MongoDB connected (db=%s)", db.Name())
		}
	}

	// Outbound
	if cfg.TwilioEnabled() {
		deps.Sender = messaging.NewTwilioSender(messaging.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioWhatsAppFrom,
		}, nil, logger.Component("twilio"))
	} else {
		logger.Warn("Twilio not configured, outbound messages are only logged")
		deps.Sender = messaging.LogSender{Log: logger.Component("outbound")}
	}
	deps.Messenger = deps.Sender
	if deps.Redis != nil {
		deps.Messenger = messaging.NewStreamMessenger(deps.Redis)
	}

	if cfg.OpenAIAPIKey != "" {
		deps.Polisher = llm.NewPolisher(llm.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
		})
		logger.Info("Reply polishing enabled (model=%s)", cfg.LLMModel)
	}

	// Core
	deps.Renderer = reply.NewRenderer(reply.ParseStyle(cfg.ReplyStyle), reply.Workshop{
		Name:    cfg.WorkshopName,
		Address: cfg.WorkshopAddress,
		MapsURL: cfg.WorkshopMapsURL,
		Hours:   cfg.WorkshopHours,
		Phone:   cfg.WorkshopPhone,
	})
	deps.Scheduler = followup.NewScheduler(
		deps.Store,
		followup.PolicyFromConfig(cfg.FollowUpMaxPerCustomer, cfg.FollowUpCooldown),
		logger.Component("followup"),
	)
	deps.Engine = triage.NewEngine(triage.Deps{
		Store:     deps.Store,
		Renderer:  deps.Renderer,
		FollowUps: deps.Scheduler,
		Messenger: deps.Messenger,
		Polisher:  deps.Polisher,
		Tickets:   deps.Tickets,
		Archive:   deps.Archive,
		Locks:     deps.Locks,
	}, &triage.Config{
		FollowUpEnabled: cfg.FollowUpEnabled,
		Stage1Delay:     cfg.FollowUpStage1Delay,
		HandoffCooldown: cfg.HandoffCooldown,
		Operators:       cfg.AdminWhatsApp,
	}, logger.Component("triage"))

	deps.Dispatcher = worker.NewDispatcher(
		deps.Store,
		deps.Scheduler,
		deps.Renderer,
		deps.Messenger,
		deps.Locks,
		worker.DispatcherConfig{
			ScanInterval: cfg.FollowUpScanInterval,
			Stage1Delay:  cfg.FollowUpStage1Delay,
			Stage2Delay:  cfg.FollowUpStage2Delay,
			Workers:      cfg.FollowUpWorkers,
		},
		logger.Component("dispatcher"),
	)

	return deps, cleanup, nil
}

// BackendInfo describes which implementation serves each concern.
func (d *Dependencies) BackendInfo() map[string]string {
	info := map[string]string{
		"store":       d.Store.Backend().Name(),
		"tickets":     "memory",
		"transcripts": "memory",
		"outbound":    "inline",
		"polisher":    "off",
	}
	if d.Postgres != nil {
		info["tickets"] = "postgres"
	}
	if d.Mongo != nil {
		info["transcripts"] = "mongodb"
	}
	if d.Redis != nil {
		info["outbound"] = "stream"
	}
	if d.Polisher != nil {
		info["polisher"] = "openai"
	}
	return info
}

