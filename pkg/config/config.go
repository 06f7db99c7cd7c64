package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Batch   BatchConfig
	Pricing PricingConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    float64
	RateBurst    int
}

type LLMConfig struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	TimeoutSec        int
	RequestsPerSecond float64
	MaxRetries        int
}

type BatchConfig struct {
	OutputDir          string
	PollIntervalSec    int
	MaxWaitSec         int
	MaxBatchSize       int
	SemanticMaxTokens  int
	SentimentMaxTokens int
	AutoRetry          bool
}

type PricingConfig struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type MetricsConfig struct {
	Enabled bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (b BatchConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalSec) * time.Second
}

func (b BatchConfig) MaxWait() time.Duration {
	return time.Duration(b.MaxWaitSec) * time.Second
}

func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSec) * time.Second
}

func Load() (*Config, error) {
	// .env is optional; explicit environment variables still win.
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/influencer-lens")

	v.SetEnvPrefix("INFLUENCER_LENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyProviderKey(&cfg.LLM)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}
	if c.Batch.MaxBatchSize <= 0 {
		return fmt.Errorf("batch.maxBatchSize must be positive, got %d", c.Batch.MaxBatchSize)
	}
	if c.Batch.PollIntervalSec <= 0 {
		return fmt.Errorf("batch.pollIntervalSec must be positive, got %d", c.Batch.PollIntervalSec)
	}
	return nil
}

func applyProviderKey(llm *LLMConfig) {
	if llm.APIKey != "" {
		return
	}
	switch llm.Provider {
	case "anthropic":
		llm.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		llm.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.rateLimit", 5)
	v.SetDefault("server.rateBurst", 20)

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.timeoutSec", 120)
	v.SetDefault("llm.requestsPerSecond", 2)
	v.SetDefault("llm.maxRetries", 3)

	v.SetDefault("batch.outputDir", "analysis/ai_results_batch")
	v.SetDefault("batch.pollIntervalSec", 60)
	v.SetDefault("batch.maxWaitSec", 86400)
	v.SetDefault("batch.maxBatchSize", 50000)
	v.SetDefault("batch.semanticMaxTokens", 2048)
	v.SetDefault("batch.sentimentMaxTokens", 4096)
	v.SetDefault("batch.autoRetry", false)

	v.SetDefault("pricing.inputPerMTok", 0.50)
	v.SetDefault("pricing.outputPerMTok", 2.50)

	v.SetDefault("sqlite.path", "./data/analysis.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 30)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stdout")
}
