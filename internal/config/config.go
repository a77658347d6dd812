// Package config loads and validates the service configuration from an
// optional YAML file, environment variables, and defaults, in that
// ascending order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
)

// Default configuration values.
const (
	defaultServerHost        = "0.0.0.0"
	defaultServerPort        = 8080
	defaultReadTimeoutSec    = 15
	defaultWriteTimeoutSec   = 30
	defaultIdleTimeoutSec    = 60
	defaultShutdownSec       = 10
	defaultDBMaxConns        = 20
	defaultDBMaxIdleConns    = 5
	defaultDBConnLifetimeMin = 30
	defaultPollIntervalSec   = 2
	defaultExtractionAPIURL  = "https://api.diffbot.com"
	defaultLLMModel          = "claude-3-5-haiku-latest"
	defaultLLMMaxTokens      = 1024
	defaultEmbeddingsModel   = "text-embedding-3-small"
	defaultEmbeddingsDims    = 1536
	defaultEmbeddingsIndex   = "news_article_vectors"
	defaultMaxConcurrentEmb  = 5
	defaultESURL             = "http://localhost:9200"
)

// Config is the root configuration shared by every subcommand.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Logger     logger.Config    `mapstructure:"logger"`
}

// ServerConfig holds the REST facade's listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the host:port the server binds to.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

// WorkerConfig holds the polling worker's settings.
type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ResumeJobs   bool          `mapstructure:"resume_jobs"`
}

// ExtractionConfig holds the content extraction API settings. APIKeys
// feeds the key pool; a longer list widens source fan-out.
type ExtractionConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
	APIURL  string   `mapstructure:"api_url"`
}

// LLMConfig holds classifier/summarizer settings.
type LLMConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// EmbeddingsConfig holds the embedding provider and vector sink
// settings. When Enabled is false the embedding step is skipped and
// none of the other fields are required.
type EmbeddingsConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	URL           string              `mapstructure:"url"`
	APIKey        string              `mapstructure:"api_key"`
	Model         string              `mapstructure:"model"`
	Dimensions    int                 `mapstructure:"dimensions"`
	Index         string              `mapstructure:"index"`
	MaxConcurrent int                 `mapstructure:"max_concurrent"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ElasticsearchConfig holds the vector sink connection settings.
type ElasticsearchConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	APIKey   string `mapstructure:"api_key"`
}

// BatchConfig holds the optional scheduled-batch settings. An empty
// schedule disables the cron.
type BatchConfig struct {
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
}

// Load reads configuration into a Config. The config file is optional;
// cfgFile overrides the default search paths when non-empty.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindLegacyEnvVars(); err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// stringToDurationHookFunc parses duration values, accepting bare
// integers as seconds. The flat env names predate duration syntax:
// WORKER_POLL_INTERVAL=2 must keep meaning two seconds.
func stringToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		s := data.(string)
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return time.ParseDuration(s)
	}
}

// bindLegacyEnvVars maps the flat environment names the deployment has
// always used onto their nested config keys.
func bindLegacyEnvVars() error {
	bindings := [][]string{
		{"logger.level", "LOG_LEVEL"},
		{"server.port", "SERVER_PORT", "API_PORT"},
		{"server.host", "SERVER_HOST", "API_HOST"},
		{"auth.jwt_secret", "JWT_SECRET"},
		{"database.url", "DATABASE_URL"},
		{"worker.poll_interval", "WORKER_POLL_INTERVAL"},
		{"extraction.api_keys", "EXTRACTION_API_KEYS", "DIFFBOT_KEYS"},
		{"extraction.api_url", "EXTRACTION_API_URL"},
		{"llm.api_key", "ANTHROPIC_API_KEY"},
		{"llm.model", "LLM_MODEL"},
		{"embeddings.enabled", "ENABLE_EMBEDDINGS"},
		{"embeddings.url", "EMBEDDINGS_URL"},
		{"embeddings.api_key", "EMBEDDINGS_API_KEY"},
		{"embeddings.max_concurrent", "MAX_CONCURRENT_EMBEDDINGS"},
		{"embeddings.elasticsearch.url", "ELASTICSEARCH_URL"},
		{"embeddings.elasticsearch.username", "ELASTICSEARCH_USERNAME"},
		{"embeddings.elasticsearch.password", "ELASTICSEARCH_PASSWORD"},
		{"embeddings.elasticsearch.api_key", "ELASTICSEARCH_API_KEY"},
		{"batch.schedule", "BATCH_SCHEDULE"},
	}
	for _, b := range bindings {
		if err := viper.BindEnv(b...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// setDefaults sets production-safe defaults.
func setDefaults() {
	viper.SetDefault("server", map[string]any{
		"host":             defaultServerHost,
		"port":             defaultServerPort,
		"read_timeout":     (defaultReadTimeoutSec * time.Second).String(),
		"write_timeout":    (defaultWriteTimeoutSec * time.Second).String(),
		"idle_timeout":     (defaultIdleTimeoutSec * time.Second).String(),
		"shutdown_timeout": (defaultShutdownSec * time.Second).String(),
	})

	viper.SetDefault("database", map[string]any{
		"max_connections":         defaultDBMaxConns,
		"max_idle_connections":    defaultDBMaxIdleConns,
		"connection_max_lifetime": (defaultDBConnLifetimeMin * time.Minute).String(),
	})

	viper.SetDefault("worker", map[string]any{
		"poll_interval": (defaultPollIntervalSec * time.Second).String(),
		"resume_jobs":   false,
	})

	viper.SetDefault("extraction.api_url", defaultExtractionAPIURL)

	viper.SetDefault("llm", map[string]any{
		"model":      defaultLLMModel,
		"max_tokens": defaultLLMMaxTokens,
	})

	viper.SetDefault("embeddings", map[string]any{
		"enabled":        true,
		"model":          defaultEmbeddingsModel,
		"dimensions":     defaultEmbeddingsDims,
		"index":          defaultEmbeddingsIndex,
		"max_concurrent": defaultMaxConcurrentEmb,
	})
	viper.SetDefault("embeddings.elasticsearch.url", defaultESURL)

	viper.SetDefault("batch.batch_size", 50)

	viper.SetDefault("logger", map[string]any{
		"level":        "info",
		"encoding":     "json",
		"development":  false,
		"output_paths": []string{"stdout"},
	})
}

// ValidateServe checks the keys the API server needs.
func (c *Config) ValidateServe() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	return missingKeysError(missing)
}

// ValidateWorker checks the keys the worker needs.
func (c *Config) ValidateWorker() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(c.Extraction.APIKeys) == 0 {
		missing = append(missing, "EXTRACTION_API_KEYS")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.Embeddings.Enabled {
		if c.Embeddings.URL == "" {
			missing = append(missing, "EMBEDDINGS_URL (or set ENABLE_EMBEDDINGS=false)")
		}
		if c.Embeddings.Elasticsearch.URL == "" {
			missing = append(missing, "ELASTICSEARCH_URL (or set ENABLE_EMBEDDINGS=false)")
		}
	}
	return missingKeysError(missing)
}

// ValidateDatabase checks the keys any database-touching subcommand
// needs.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return missingKeysError([]string{"DATABASE_URL"})
	}
	return nil
}

func missingKeysError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
}
