package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "CONFIDENCE_THRESHOLD", "MIN_TEXT_LENGTH", "MODEL_STORE", "MODEL_PATH", "NB_ALPHA"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5050", cfg.Port)
	assert.Equal(t, 0.85, cfg.Classifier.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.Classifier.MinTextLength)
	assert.Equal(t, 1.0, cfg.Classifier.Alpha)
	assert.Equal(t, 1000, cfg.Classifier.MaxFeatures)
	assert.Equal(t, 2, cfg.Classifier.MinDF)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "model.json", cfg.Store.Path)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "0.6")
	t.Setenv("MODEL_STORE", "REDIS")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLOWED_ORIGINS", "https://mail.google.com, http://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Classifier.ConfidenceThreshold)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, []string{"https://mail.google.com", "http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Classifier: ClassifierConfig{
				ConfidenceThreshold: 0.85,
				MinTextLength:       5,
				Alpha:               1,
				MaxFeatures:         1000,
				MinDF:               2,
				NGramMax:            2,
				EvalTestFraction:    0.2,
				EvalFolds:           5,
			},
			Store:  StoreConfig{Backend: StoreFile, Path: "model.json"},
			NodeID: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero threshold", func(c *Config) { c.Classifier.ConfidenceThreshold = 0 }, "CONFIDENCE_THRESHOLD"},
		{"threshold above one", func(c *Config) { c.Classifier.ConfidenceThreshold = 1.2 }, "CONFIDENCE_THRESHOLD"},
		{"negative min length", func(c *Config) { c.Classifier.MinTextLength = -1 }, "MIN_TEXT_LENGTH"},
		{"zero alpha", func(c *Config) { c.Classifier.Alpha = 0 }, "NB_ALPHA"},
		{"trigrams", func(c *Config) { c.Classifier.NGramMax = 3 }, "NGRAM_MAX"},
		{"one fold", func(c *Config) { c.Classifier.EvalFolds = 1 }, "EVAL_FOLDS"},
		{"redis without url", func(c *Config) { c.Store.Backend = StoreRedis }, "REDIS_URL"},
		{"postgres without url", func(c *Config) { c.Store.Backend = StorePostgres }, "DATABASE_URL"},
		{"mongodb without url", func(c *Config) { c.Store.Backend = StoreMongoDB }, "MONGODB_URL"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }, "unknown MODEL_STORE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
