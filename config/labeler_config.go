package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported model store backends.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMongoDB  = "mongodb"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	Classifier ClassifierConfig
	Store      StoreConfig

	// Node ID for example ID generation
	NodeID int64

	// Rate limiting (requests per minute per client, 0 disables)
	RateLimitPerMin int

	// CORS
	AllowedOrigins []string

	ShutdownTimeout time.Duration
}

// ClassifierConfig holds the model and acceptance parameters.
type ClassifierConfig struct {
	ConfidenceThreshold float64
	MinTextLength       int
	Alpha               float64
	MaxFeatures         int
	MinDF               int
	NGramMax            int

	// Evaluation defaults
	EvalSeed         int64
	EvalTestFraction float64
	EvalFolds        int
}

// StoreConfig selects and configures the model store backend.
type StoreConfig struct {
	Backend    string
	Path       string // file backend
	RedisKey   string
	TableName  string // postgres backend
	Collection string // mongodb backend
	StateID    string // row/document identifier for remote backends
	Timeout    time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "5050"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "labeler"),
		RedisURL:    getEnv("REDIS_URL", ""),

		Classifier: ClassifierConfig{
			ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.85),
			MinTextLength:       getEnvInt("MIN_TEXT_LENGTH", 5),
			Alpha:               getEnvFloat("NB_ALPHA", 1.0),
			MaxFeatures:         getEnvInt("MAX_FEATURES", 1000),
			MinDF:               getEnvInt("MIN_DF", 2),
			NGramMax:            getEnvInt("NGRAM_MAX", 2),
			EvalSeed:            int64(getEnvInt("EVAL_SEED", 42)),
			EvalTestFraction:    getEnvFloat("EVAL_TEST_FRACTION", 0.2),
			EvalFolds:           getEnvInt("EVAL_FOLDS", 5),
		},

		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv("MODEL_STORE", StoreFile)),
			Path:       getEnv("MODEL_PATH", "model.json"),
			RedisKey:   getEnv("MODEL_REDIS_KEY", "labeler:model_state"),
			TableName:  getEnv("MODEL_TABLE", "labeler_model_state"),
			Collection: getEnv("MODEL_COLLECTION", "model_state"),
			StateID:    getEnv("MODEL_STATE_ID", "default"),
			Timeout:    time.Duration(getEnvInt("MODEL_STORE_TIMEOUT_SEC", 10)) * time.Second,
		},

		NodeID:          int64(getEnvInt("NODE_ID", 1)),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 0),

		// CORS (every origin by default)
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),

		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and backend requirements.
func (c *Config) Validate() error {
	cl := c.Classifier
	if cl.ConfidenceThreshold <= 0 || cl.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1], got %v", cl.ConfidenceThreshold)
	}
	if cl.MinTextLength < 0 {
		return fmt.Errorf("MIN_TEXT_LENGTH must be >= 0, got %d", cl.MinTextLength)
	}
	if cl.Alpha <= 0 {
		return fmt.Errorf("NB_ALPHA must be > 0, got %v", cl.Alpha)
	}
	if cl.MaxFeatures < 1 {
		return fmt.Errorf("MAX_FEATURES must be >= 1, got %d", cl.MaxFeatures)
	}
	if cl.MinDF < 1 {
		return fmt.Errorf("MIN_DF must be >= 1, got %d", cl.MinDF)
	}
	if cl.NGramMax < 1 || cl.NGramMax > 2 {
		return fmt.Errorf("NGRAM_MAX must be 1 or 2, got %d", cl.NGramMax)
	}
	if cl.EvalTestFraction <= 0 || cl.EvalTestFraction >= 1 {
		return fmt.Errorf("EVAL_TEST_FRACTION must be in (0, 1), got %v", cl.EvalTestFraction)
	}
	if cl.EvalFolds < 2 {
		return fmt.Errorf("EVAL_FOLDS must be >= 2, got %d", cl.EvalFolds)
	}

	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("MODEL_PATH is required for the file store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreMongoDB:
		if c.MongoDBURL == "" {
			return fmt.Errorf("MONGODB_URL is required for the mongodb store")
		}
	default:
		return fmt.Errorf("unknown MODEL_STORE %q", c.Store.Backend)
	}

	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be in [0, 1023], got %d", c.NodeID)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
