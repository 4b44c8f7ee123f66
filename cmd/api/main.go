package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docchat/internal/api"
	"github.com/nikhilbhutani/docchat/internal/api/handlers"
	"github.com/nikhilbhutani/docchat/internal/api/middleware"
	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/database"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/queue"
	"github.com/nikhilbhutani/docchat/internal/rag"
	"github.com/nikhilbhutani/docchat/internal/session"
	"github.com/nikhilbhutani/docchat/internal/speech"
	"github.com/nikhilbhutani/docchat/internal/speech/stt"
	"github.com/nikhilbhutani/docchat/internal/speech/tts"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/summary"
	"github.com/nikhilbhutani/docchat/internal/summary/pdf"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Sessions
	mongoClient, err := session.Connect(ctx, cfg.Mongo)
	if err != nil {
		slog.Error("mongo unavailable", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	sessions := session.NewMongoStore(mongoClient.Database(cfg.Mongo.Database))
	if err := sessions.EnsureIndexes(ctx); err != nil {
		slog.Warn("session index setup failed", "error", err)
	}

	checks := map[string]handlers.Check{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}

	// Vector index
	var index vectorstore.Index
	switch cfg.Vector.Backend {
	case "memory":
		slog.Warn("using in-memory vector index, chunks are lost on restart")
		index = vectorstore.NewMemoryStore()
	default:
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		index = vectorstore.NewPgVectorStore(db, cfg.Vector.Dimension)
		checks["postgres"] = db.Ping
	}

	// Redis backs the query embedding cache and the purge queue
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, embedding cache disabled", "error", err)
	}
	defer rdb.Close()
	embedCache := cache.NewCache(rdb, "docchat")
	checks["redis"] = embedCache.Ping

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("object storage unavailable", "error", err)
		os.Exit(1)
	}

	gw := llm.NewGateway(cfg.LLM, llm.WithUsageHook(m.RecordUsage))
	embedder := embedding.NewCachedEmbedder(
		embedding.NewService(gw, cfg.LLM.EmbeddingModel),
		embedCache, cfg.LLM.EmbeddingModel, cfg.RAG.EmbeddingCacheTTL,
	)

	purges := queue.NewClient(cfg.Redis)
	defer purges.Close()

	transcriber, err := stt.New(cfg.STT)
	if err != nil {
		slog.Error("speech-to-text setup failed", "error", err)
		os.Exit(1)
	}
	synth, err := tts.New(cfg.TTS)
	if err != nil {
		slog.Error("text-to-speech setup failed", "error", err)
		os.Exit(1)
	}

	svc := api.Services{
		Documents: document.NewService(sessions, index, embedder, store,
			document.WithPurger(purges),
			document.WithMetrics(m),
			document.WithChunkSize(cfg.RAG.ChunkSize),
		),
		Chat:        rag.NewChatService(sessions, index, embedder, gw, cfg.LLM.ChatModel, cfg.RAG, m),
		Summaries:   summary.NewService(sessions, gw, cfg.LLM.SummaryModel, cfg.RAG.SummaryTurns),
		Renderer:    pdf.NewRenderer(),
		Transcriber: transcriber,
		Voice:       speech.NewVoice(synth, store),
		Sessions:    sessions,
		Checks:      checks,
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep)
	defer close(stopSweep)

	router := api.NewRouter(svc, cfg.Auth.JWTSecret, cfg.Server.CORSOrigins, limiter, m, reg)
	handler := router.Setup()

	// No WriteTimeout: answers stream for as long as the model takes.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(),
			"vector_backend", cfg.Vector.Backend,
			"storage_backend", cfg.Storage.Backend,
			"stt", transcriber.Name(),
			"tts", synth.Name(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
