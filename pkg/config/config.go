package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AggregationConcat = "concat"
	AggregationMemory = "memory"

	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Storage   StorageConfig
	OpenAI    OpenAIConfig
	Search    SearchConfig
	Typesense TypesenseConfig
	Redis     RedisConfig
	Pipeline  PipelineConfig
	OTEL      OTELConfig
	Log       LogConfig
}

// DatabaseConfig holds database configuration. URL wins over the discrete
// fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// StorageConfig describes the object store holding source documents and
// published summaries.
type StorageConfig struct {
	URL             string
	ServiceKey      string
	Bucket          string
	SummaryPrefix   string
	ReferenceMarker string
	Timeout         time.Duration
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	ExtractionModel   string
	SummaryModel      string
	VerificationModel string
	RequestsPerMinute int
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
}

// SearchConfig configures web search used for medicine verification.
type SearchConfig struct {
	BaseURL           string
	Region            string
	MaxResults        int
	MaxAttempts       int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled    bool
	URL        string
	APIKey     string
	Collection string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	LockTTL       time.Duration
	EventsChannel string
}

// PipelineConfig controls the batch run.
type PipelineConfig struct {
	WorkDir           string
	Aggregation       string
	OutputFormat      string
	VerificationDelay time.Duration
	MemoryTopK        int
	MemoryQuery       string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

type LogConfig struct {
	Env   string
	Level string
}

// LoadDotEnv loads the given dotenv files, ignoring the ones that do not
// exist. Variables already present in the environment are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			URL:             strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceKey:      getEnv("SUPABASE_SERVICE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
			Bucket:          getEnv("STORAGE_BUCKET", "medical-documents"),
			SummaryPrefix:   getEnv("STORAGE_SUMMARY_PREFIX", "medical-records"),
			ReferenceMarker: getEnv("STORAGE_REFERENCE_MARKER", "/object/public/"),
			Timeout:         getEnvAsMillis("STORAGE_TIMEOUT_MS", 60*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ExtractionModel:   getEnv("OPENAI_EXTRACTION_MODEL", "gpt-4o"),
			SummaryModel:      getEnv("OPENAI_SUMMARY_MODEL", "gpt-4o-mini"),
			VerificationModel: getEnv("OPENAI_VERIFICATION_MODEL", "gpt-4o-mini"),
			RequestsPerMinute: getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			Burst:             getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			Timeout:           getEnvAsMillis("OPENAI_TIMEOUT_MS", 120*time.Second),
			MaxRetries:        getEnvAsInt("OPENAI_MAX_RETRIES", 2),
		},
		Search: SearchConfig{
			BaseURL:           getEnv("SEARCH_BASE_URL", "https://html.duckduckgo.com/html/"),
			Region:            getEnv("SEARCH_REGION", "in-en"),
			MaxResults:        getEnvAsInt("SEARCH_MAX_RESULTS", 5),
			MaxAttempts:       getEnvAsInt("SEARCH_MAX_ATTEMPTS", 3),
			RequestsPerSecond: getEnvAsFloat("SEARCH_RPS", 1),
			Timeout:           getEnvAsMillis("SEARCH_TIMEOUT_MS", 15*time.Second),
		},
		Typesense: TypesenseConfig{
			Enabled:    getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_MEMORY_COLLECTION", "patient_memories"),
		},
		Redis: RedisConfig{
			Enabled:       getEnvAsBool("REDIS_ENABLED", false),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvAsInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			LockTTL:       getEnvAsMillis("REDIS_LOCK_TTL_MS", 30*time.Minute),
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "ayurlekha:summaries"),
		},
		Pipeline: PipelineConfig{
			WorkDir:           getEnv("PIPELINE_WORKDIR", "temp_medical_docs"),
			Aggregation:       strings.ToLower(getEnv("PIPELINE_AGGREGATION", AggregationConcat)),
			OutputFormat:      NormalizeFormat(getEnv("PIPELINE_OUTPUT_FORMAT", FormatJSON)),
			VerificationDelay: getEnvAsMillis("PIPELINE_VERIFICATION_DELAY_MS", 2*time.Second),
			MemoryTopK:        getEnvAsInt("PIPELINE_MEMORY_TOP_K", 10),
			MemoryQuery:       getEnv("PIPELINE_MEMORY_QUERY", "summarize patient %s"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ayurlekha-processing-engine"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail halfway through a run.
func (c *Config) Validate() error {
	var problems []string

	switch c.Pipeline.Aggregation {
	case AggregationConcat:
	case AggregationMemory:
		if !c.Typesense.Enabled {
			problems = append(problems, "memory aggregation requires TYPESENSE_ENABLED=true")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown aggregation strategy %q", c.Pipeline.Aggregation))
	}

	switch c.Pipeline.OutputFormat {
	case FormatJSON, FormatMarkdown:
	default:
		problems = append(problems, fmt.Sprintf("unknown output format %q", c.Pipeline.OutputFormat))
	}

	if c.Storage.URL == "" {
		problems = append(problems, "SUPABASE_URL is required")
	}
	if c.OpenAI.APIKey == "" {
		problems = append(problems, "OPENAI_API_KEY is required")
	}
	if c.Pipeline.WorkDir == "" {
		problems = append(problems, "PIPELINE_WORKDIR must not be empty")
	}
	if c.Search.MaxAttempts < 1 {
		problems = append(problems, "SEARCH_MAX_ATTEMPTS must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NormalizeFormat lowercases an output format and maps "md" to markdown.
func NormalizeFormat(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "md" {
		return FormatMarkdown
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
