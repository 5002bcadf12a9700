package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Admin     AdminConfig
	JWT       JWTConfig
	LLM       LLMConfig
	OpenAI    OpenAIConfig
	GigaChat  GigaChatConfig
	Index     IndexConfig
	Retrieval RetrievalConfig
	Search    SearchConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AdminConfig struct {
	// Token gates the review/indexing surface. There is no default:
	// the service refuses to start without it.
	Token string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

type LLMConfig struct {
	// Provider selects the generation backend: "openai" or "gigachat".
	Provider string
}

type OpenAIConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

type IndexConfig struct {
	SitemapURL       string
	MaxURLs          int
	Concurrency      int
	FetchTimeout     time.Duration
	ChunkWindow      int
	ChunkOverlap     int
	MaxChunksPerPage int
}

type RetrievalConfig struct {
	SiteConfidence    float64
	MinScore          float64
	MaxContextChunks  int
	OverrideThreshold float64
}

type SearchConfig struct {
	// BlevePath is the on-disk lexical index location. Empty disables the
	// index-backed strategy and retrieval falls back to linear scans.
	BlevePath string
}

func Load() (*Config, error) {
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "60"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	maxURLs, _ := strconv.Atoi(getEnv("INDEX_MAX_URLS", "500"))
	concurrency, _ := strconv.Atoi(getEnv("INDEX_CONCURRENCY", "3"))
	fetchTimeout, _ := strconv.Atoi(getEnv("INDEX_FETCH_TIMEOUT", "20"))
	chunkWindow, _ := strconv.Atoi(getEnv("INDEX_CHUNK_WINDOW", "2000"))
	chunkOverlap, _ := strconv.Atoi(getEnv("INDEX_CHUNK_OVERLAP", "250"))
	maxChunks, _ := strconv.Atoi(getEnv("INDEX_MAX_CHUNKS_PER_PAGE", "6"))
	maxContext, _ := strconv.Atoi(getEnv("RETRIEVAL_MAX_CONTEXT_CHUNKS", "12"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "law_chatbot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Admin: AdminConfig{
			Token: os.Getenv("ADMIN_TOKEN"),
		},
		JWT: JWTConfig{
			SecretKey:  os.Getenv("JWT_SECRET_KEY"),
			Expiration: time.Duration(jwtExp) * time.Hour,
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "openai"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			ChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		},
		Index: IndexConfig{
			SitemapURL:       getEnv("INDEX_SITEMAP_URL", "https://law.temple.edu/sitemap.xml"),
			MaxURLs:          maxURLs,
			Concurrency:      concurrency,
			FetchTimeout:     time.Duration(fetchTimeout) * time.Second,
			ChunkWindow:      chunkWindow,
			ChunkOverlap:     chunkOverlap,
			MaxChunksPerPage: maxChunks,
		},
		Retrieval: RetrievalConfig{
			SiteConfidence:    getEnvFloat("RETRIEVAL_SITE_CONFIDENCE", 0.45),
			MinScore:          getEnvFloat("RETRIEVAL_MIN_SCORE", 0.12),
			MaxContextChunks:  maxContext,
			OverrideThreshold: getEnvFloat("OVERRIDE_SIMILARITY_THRESHOLD", 0.82),
		},
		Search: SearchConfig{
			BlevePath: getEnv("BLEVE_INDEX_PATH", "data/lexical.bleve"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// Validate checks the settings the service cannot run without. The admin
// surface is token-gated, so a missing secret is fatal at startup rather
// than an open endpoint at runtime.
func (c *Config) Validate() error {
	if c.Admin.Token == "" {
		return fmt.Errorf("ADMIN_TOKEN is required")
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "gigachat" {
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.Index.ChunkOverlap >= c.Index.ChunkWindow {
		return fmt.Errorf("INDEX_CHUNK_OVERLAP must be smaller than INDEX_CHUNK_WINDOW")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
