// Command ojoagentd is the batch-processor server (spec §1): it wires
// together the Task Service (C9), Pipeline Runner (C8), Adapter Registry
// (C5), LLM Stream Layer (C6), Event Bus (C1), and every other component
// C1-C10 describes, then serves the HTTP/WebSocket caller surface
// internal/httpapi exposes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/adapter/codeforces"
	"github.com/inkotake/ojoagent/internal/adapter/hydrooj"
	"github.com/inkotake/ojoagent/internal/adapter/luogu"
	"github.com/inkotake/ojoagent/internal/adapter/manual"
	"github.com/inkotake/ojoagent/internal/artifact"
	"github.com/inkotake/ojoagent/internal/bus"
	"github.com/inkotake/ojoagent/internal/concurrency"
	"github.com/inkotake/ojoagent/internal/config"
	"github.com/inkotake/ojoagent/internal/db"
	"github.com/inkotake/ojoagent/internal/generator"
	"github.com/inkotake/ojoagent/internal/httpapi"
	"github.com/inkotake/ojoagent/internal/llmstream"
	"github.com/inkotake/ojoagent/internal/notify"
	"github.com/inkotake/ojoagent/internal/pipeline"
	"github.com/inkotake/ojoagent/internal/problemid"
	"github.com/inkotake/ojoagent/internal/secrets"
	"github.com/inkotake/ojoagent/internal/taskservice"
	"github.com/inkotake/ojoagent/internal/usercontext"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "HTTP/WebSocket listen address")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded, continuing with existing environment", "path", envPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	workspaceRoot := artifact.WorkspaceRoot()
	slog.Info("starting ojoagentd", "config_dir", *configDir, "workspace_root", workspaceRoot, "http_addr", *httpAddr)

	// --- C3 Artifact Store root / C1 Event Bus -------------------------
	eventBus := bus.New()
	fanout := bus.NewFanout(eventBus, 5*time.Second)

	// --- Database (pgx + hand-rolled SQL, spec §6.5) --------------------
	dbConfig, err := db.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database configuration", "error", err)
		os.Exit(1)
	}
	dbClient, err := db.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()
	slog.Info("connected to database and applied migrations")

	// --- Credential encryption at rest (spec §3.1, §6.4) ----------------
	masterKey, err := secrets.LoadOrGenerateKey(filepath.Join(*configDir, "master.key"))
	if err != nil {
		slog.Error("failed to load or generate master encryption key", "error", err)
		os.Exit(1)
	}
	encryptor, err := secrets.NewEncryptor(masterKey)
	if err != nil {
		slog.Error("failed to build encryptor", "error", err)
		os.Exit(1)
	}

	taskStore := db.NewTaskStore(dbClient)
	activityStore := db.NewActivityStore(dbClient)
	configStore := db.NewConfigStore(dbClient, encryptor)

	// --- C5 Adapter Registry --------------------------------------------
	registry := adapter.New()
	httpClient := &http.Client{Timeout: 30 * time.Second}
	registry.Register(codeforces.New(httpClient))
	registry.Register(luogu.New(httpClient))
	registry.Register(hydrooj.New(&taskservice.HydroOJConfigProvider{Configs: configStore}, httpClient))
	registry.Register(manual.New(workspaceRoot))
	if failed := registry.InitializeAll(ctx); len(failed) > 0 {
		slog.Warn("some adapters failed to initialize; they remain registered and will fail fast on use", "adapters", failed)
	}

	// --- C4 Problem-ID Resolver ------------------------------------------
	resolver := problemid.New(adapter.ProblemIDRegistry{Registry: registry})

	// --- C2 Concurrency primitives ---------------------------------------
	semaphores := concurrency.NewSemaphorePool(concurrency.PoolConfig{
		LLMSlots:         cfg.Concurrency.LLMSlots,
		RemoteReadSlots:  cfg.Concurrency.RemoteReadSlots,
		RemoteWriteSlots: cfg.Concurrency.RemoteWriteSlots,
		CompileSlots:     cfg.Concurrency.CompileSlots,
	})
	minSubmitInterval := cfg.Concurrency.MinSubmitInterval
	if minSubmitInterval <= 0 {
		minSubmitInterval = concurrency.DefaultMinSubmitInterval
	}
	submitSlot := concurrency.NewSubmitSlot(minSubmitInterval)

	// --- C7 User Context manager ------------------------------------------
	userContexts := usercontext.NewManager(usercontext.DefaultMaxUsers)

	// --- C6 LLM Stream Layer factory ---------------------------------------
	llmFactory := llmstream.NewFactory()

	// --- Generator toolchain (Gen stage compile/execute, spec §4.2.2) -----
	toolchain := generator.New(getEnv("OJO_CXX_COMPILER", ""))

	// --- Slack task-lifecycle notifications (optional, spec §6.4) ---------
	var slackToken string
	if cfg.Slack.Enabled && cfg.Slack.TokenEnv != "" {
		slackToken = os.Getenv(cfg.Slack.TokenEnv)
	}
	notifier := notify.NewService(notify.ServiceConfig{
		Token:        slackToken,
		Channel:      cfg.Slack.Channel,
		DashboardURL: cfg.System.DashboardURL,
	})

	// --- C8 Pipeline Runner --------------------------------------------------
	runner := pipeline.New(pipeline.Config{
		Registry:      registry,
		Resolver:      resolver,
		WorkspaceRoot: workspaceRoot,
		Semaphores:    semaphores,
		LLMFactory:    llmFactory,
		UserContexts:  userContexts,
		SubmitSlot:    submitSlot,
		Bus:           eventBus,
		Toolchain:     toolchain,
		Authenticator: &taskservice.ConfigAuthenticator{Configs: configStore},
	})

	// --- C9 Task Service -------------------------------------------------------
	tasks := taskservice.New(taskservice.Config{
		Store:          taskStore,
		Activity:       activityStore,
		Credentials:    &taskservice.ConfigCredentialResolver{Configs: configStore},
		Runner:         runner,
		Bus:            eventBus,
		Notify:         notifier,
		MaxGlobalTasks: cfg.System.MaxGlobalTasks,
	})

	// --- Live config reload (spec §6.4's proxy/CORS/debug knobs) --------------
	watcher := config.NewWatcher(*configDir, func(newCfg *config.Config) {
		slog.Info("configuration reloaded", "max_global_tasks", newCfg.System.MaxGlobalTasks)
	})
	if err := watcher.Start(ctx); err != nil {
		slog.Warn("config hot-reload disabled", "error", err)
	} else {
		defer watcher.Stop()
	}

	// --- HTTP/WebSocket caller surface -----------------------------------------
	server := httpapi.NewServer(httpapi.Config{
		Tasks:            tasks,
		DBClient:         dbClient,
		Fanout:           fanout,
		Resolver:         resolver,
		WorkspaceRoot:    workspaceRoot,
		AllowedWSOrigins: cfg.System.AllowedWSOrigins,
	})

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", *httpAddr)
		serveErr <- server.Start(*httpAddr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tasks.Shutdown(true)
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}
	registry.Shutdown()
	slog.Info("ojoagentd stopped")
}
