package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Mongo    MongoConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Storage  StorageConfig
	STT      STTConfig
	TTS      TTSConfig
	RAG      RAGConfig
	Vector   VectorConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

type MongoConfig struct {
	URI      string
	Database string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey       string
	AnthropicKey    string
	OllamaURL       string
	DefaultProvider string
	ChatModel       string
	SummaryModel    string
	EmbeddingModel  string
	// Anthropic has no embeddings API, so embeddings route separately.
	EmbeddingProvider string
	FallbackProvider  string
	MaxRetries        int
}

type StorageConfig struct {
	Backend        string // "minio" or "supabase"
	Bucket         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    bool
	PublicBaseURL  string
	SupabaseURL    string
	SupabaseKey    string
}

type STTConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string // default: "http://localhost:8178"
}

type TTSConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	Voice         string
	LocalBinPath  string // default: "piper"
	LocalModel    string // required when backend=local
}

// RAGConfig holds the retrieval policy. The defaults match the behaviour
// clients were built against.
type RAGConfig struct {
	ChunkSize         int
	CandidateK        int
	RerankTopN        int
	HistoryTurns      int
	SummaryTurns      int
	StreamPacing      time.Duration
	EmbeddingCacheTTL time.Duration
}

type VectorConfig struct {
	Backend   string // "pgvector" or "memory"
	Dimension int
}

func DefaultRAG() RAGConfig {
	return RAGConfig{
		ChunkSize:         500,
		CandidateK:        20,
		RerankTopN:        3,
		HistoryTurns:      5,
		SummaryTurns:      20,
		StreamPacing:      10 * time.Millisecond,
		EmbeddingCacheTTL: time.Hour,
	}
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	dim, err := getEnvInt("VECTOR_DIMENSION", 1536)
	if err != nil {
		return nil, fmt.Errorf("invalid VECTOR_DIMENSION: %w", err)
	}

	rag, err := loadRAG()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("DB_NAME", "docchat"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("SECRET_KEY", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			ChatModel:        getEnv("LLM_CHAT_MODEL", "gpt-4o"),
			SummaryModel:     getEnv("LLM_SUMMARY_MODEL", "gpt-4"),
			EmbeddingModel:    getEnv("LLM_EMBEDDING_MODEL", "text-embedding-ada-002"),
			EmbeddingProvider: getEnv("LLM_EMBEDDING_PROVIDER", "openai"),
			FallbackProvider:  getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:        maxRetries,
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "minio"),
			Bucket:         getEnv("STORAGE_BUCKET", "documents"),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioSecure:    getEnvBool("MINIO_SECURE", false),
			PublicBaseURL:  getEnv("STORAGE_PUBLIC_URL", ""),
			SupabaseURL:    getEnv("SUPABASE_URL", ""),
			SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", ""),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			Voice:         getEnv("TTS_VOICE", "alloy"),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
		},
		RAG: rag,
		Vector: VectorConfig{
			Backend:   getEnv("VECTOR_BACKEND", "pgvector"),
			Dimension: dim,
		},
	}

	return cfg, nil
}

func loadRAG() (RAGConfig, error) {
	rag := DefaultRAG()
	var err error

	ints := []struct {
		key string
		dst *int
	}{
		{"RAG_CHUNK_SIZE", &rag.ChunkSize},
		{"RAG_CANDIDATE_K", &rag.CandidateK},
		{"RAG_RERANK_TOP_N", &rag.RerankTopN},
		{"RAG_HISTORY_TURNS", &rag.HistoryTurns},
		{"RAG_SUMMARY_TURNS", &rag.SummaryTurns},
	}
	for _, f := range ints {
		if *f.dst, err = getEnvInt(f.key, *f.dst); err != nil {
			return rag, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		if *f.dst <= 0 {
			return rag, fmt.Errorf("invalid %s: must be positive", f.key)
		}
	}

	if rag.StreamPacing, err = getEnvDuration("RAG_STREAM_PACING", rag.StreamPacing); err != nil {
		return rag, fmt.Errorf("invalid RAG_STREAM_PACING: %w", err)
	}
	if rag.EmbeddingCacheTTL, err = getEnvDuration("EMBEDDING_CACHE_TTL", rag.EmbeddingCacheTTL); err != nil {
		return rag, fmt.Errorf("invalid EMBEDDING_CACHE_TTL: %w", err)
	}
	return rag, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Mongo.URI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if c.Vector.Backend == "pgvector" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
