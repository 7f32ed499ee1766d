package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"twin_gateway/internal/config"
	"twin_gateway/internal/middleware"
	"twin_gateway/internal/orchestrator"
	"twin_gateway/internal/providers"
	"twin_gateway/internal/queue"
	"twin_gateway/internal/ratelimit"
	"twin_gateway/internal/storage"
	"twin_gateway/internal/tools"
)

// Dependencies aggregates everything the HTTP handlers need.
type Dependencies struct {
	Cfg         *config.Config
	DB          *storage.DB
	Users       UserStore
	Profiles    ProfileStore
	History     HistoryRecorder
	HistoryList HistoryLister
	Generator   Generator

	historyWorker *storage.HistoryQueueWorker
	historyQueue  queue.Queue
}

// NewRouter wires the full service and returns the HTTP handler plus the
// dependency bundle, whose Close must be called on shutdown.
func NewRouter(ctx context.Context, cfg *config.Config) (http.Handler, *Dependencies, error) {
	db, err := storage.NewDB(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	historyQueue, dlq, err := buildHistoryQueue(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	queueCfg := queue.DefaultConfig("response_history")
	worker := storage.NewHistoryQueueWorker(historyQueue, dlq, db, queueCfg)
	worker.Start(ctx)

	gen, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		worker.Stop()
		db.Close()
		return nil, nil, err
	}

	deps := &Dependencies{
		Cfg:           cfg,
		DB:            db,
		Users:         storage.NewUserRepository(db),
		Profiles:      storage.NewProfileRepository(db),
		History:       worker,
		HistoryList:   storage.NewHistoryRepository(db),
		Generator:     gen,
		historyWorker: worker,
		historyQueue:  historyQueue,
	}

	mux := http.NewServeMux()
	deps.registerRoutes(mux)

	return middleware.LoggingMiddleware(mux), deps, nil
}

// buildHistoryQueue selects the queue backend. Redis when an address is
// configured, in-memory otherwise.
func buildHistoryQueue(cfg *config.Config) (queue.Queue, queue.DeadLetterQueue, error) {
	queueCfg := queue.DefaultConfig("response_history")
	if cfg.Redis.Address == "" {
		slog.Info("history queue backend: memory")
		return queue.NewMemoryQueue(queueCfg), queue.NewMemoryDeadLetterQueue(), nil
	}

	queueCfg.RedisAddr = cfg.Redis.Address
	queueCfg.RedisPassword = cfg.Redis.Password
	queueCfg.RedisDB = cfg.Redis.DB

	q, err := queue.NewRedisQueue(queueCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect history queue to redis: %w", err)
	}
	dlq, err := queue.NewRedisDeadLetterQueue(queueCfg)
	if err != nil {
		q.Close()
		return nil, nil, fmt.Errorf("failed to connect dead letter queue to redis: %w", err)
	}
	slog.Info("history queue backend: redis", "address", cfg.Redis.Address)
	return q, dlq, nil
}

// buildOrchestrator constructs the provider clients that have credentials
// configured and the orchestrator on top of them.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	tracker := ratelimit.NewWithBackoff(cfg.Generation.DefaultBackoff)

	var primary, fallback providers.Client

	if cfg.Gemini.APIKey != "" {
		client, err := providers.NewGeminiClient(ctx, cfg.Gemini, cfg.Generation, cfg.Stream, tracker)
		if err != nil {
			return nil, fmt.Errorf("failed to build gemini client: %w", err)
		}
		primary = client
		slog.Info("provider configured", "provider", client.Name(), "models", len(client.Models()))
	}

	if cfg.OpenAI.APIKey != "" {
		client, err := providers.NewOpenAIClient(cfg.OpenAI, cfg.Generation, cfg.Stream, tracker)
		if err != nil {
			return nil, fmt.Errorf("failed to build openai client: %w", err)
		}
		fallback = client
		slog.Info("provider configured", "provider", client.Name(), "models", len(client.Models()))
	}

	return orchestrator.New(primary, fallback, tools.NewRegistry(), cfg.Generation)
}

func (d *Dependencies) registerRoutes(mux *http.ServeMux) {
	session := middleware.SessionMiddleware(d.Cfg.Auth)

	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/api/auth/register", d.handleRegister)
	mux.HandleFunc("/api/auth/login", d.handleLogin)

	mux.Handle("/api/profile", session(http.HandlerFunc(d.handleProfile)))
	mux.Handle("/api/generate", session(http.HandlerFunc(d.handleGenerate)))
	mux.Handle("/api/generate/stream", session(http.HandlerFunc(d.handleGenerateStream)))
	mux.Handle("/api/history", session(http.HandlerFunc(d.handleHistory)))
}

// handleHealth reports database reachability and queue depth.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	type healthResponse struct {
		Status      string `json:"status"`
		Database    string `json:"database"`
		QueueLength int    `json:"queueLength"`
	}

	resp := healthResponse{Status: "ok", Database: "ok"}
	if err := d.DB.Health(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
	}
	if d.historyQueue != nil {
		if n, err := d.historyQueue.Length(r.Context()); err == nil {
			resp.QueueLength = n
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// Close stops the history worker and releases storage connections.
func (d *Dependencies) Close() error {
	if d.historyWorker != nil {
		if err := d.historyWorker.Stop(); err != nil {
			slog.Error("failed to stop history worker", "error", err)
		}
	}
	if d.historyQueue != nil {
		if err := d.historyQueue.Close(); err != nil {
			slog.Error("failed to close history queue", "error", err)
		}
	}
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
