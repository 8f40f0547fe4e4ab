package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"triage_server/config"
	"triage_server/infra/middleware"
	"triage_server/internal/bootstrap"
	"triage_server/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
	adminTokenTTL   = 12 * time.Hour
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	issueToken := flag.String("issue-token", "", "Print an admin API token for the given operator and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "triage-" + *mode,
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	if *issueToken != "" {
		token, err := middleware.IssueAdminToken(cfg.AdminJWTSecret, *issueToken, adminTokenTTL)
		if err != nil {
			logger.Fatal("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	deps, cleanup, err := bootstrap.NewDependencies(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(deps)
	case "worker":
		runWorker(deps)
	case "all":
		w := bootstrap.NewWorker(deps)
		go w.Start()
		defer w.Stop()
		runAPI(deps)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(deps *bootstrap.Dependencies) {
	app := bootstrap.NewAPI(deps)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		} else {
			logger.Info("API server shut down gracefully")
		}
	}()

	addr := ":" + deps.Config.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

func runWorker(deps *bootstrap.Dependencies) {
	w := bootstrap.NewWorker(deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			w.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Worker shut down gracefully")
		case <-time.After(shutdownTimeout):
			logger.Warn("Worker shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Info("Starting worker...")
	w.Start()
}
