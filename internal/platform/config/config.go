// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     Server
	Admin      Admin
	Redis      RedisConfig
	Postgres   PostgresConfig
	Kafka      KafkaConfig
	Challenge  ChallengeConfig
	Reputation ReputationConfig
	Risk       RiskConfig
	Payout     PayoutConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"RISKGATE_ADDR" env-default:":8080"`
	Env             string        `env:"RISKGATE_ENV" env-default:"development"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// Admin configures reviewer token verification.
type Admin struct {
	JWTSigningKey string `env:"ADMIN_JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"ADMIN_JWT_ISSUER" env-default:"riskgate"`
	JWTAudience   string `env:"ADMIN_JWT_AUDIENCE" env-default:"riskgate-admin"`
}

// RedisConfig is optional; an empty URL keeps counters and caches in memory.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" env-default:"20"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"500ms"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"500ms"`
}

// PostgresConfig is optional; an empty URL keeps records in memory.
type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	MigrateOnStart  bool          `env:"DB_MIGRATE_ON_START" env-default:"true"`
}

// KafkaConfig is optional; without brokers notifications go to the log.
type KafkaConfig struct {
	Brokers        []string `env:"KAFKA_BROKERS" env-separator:","`
	ClientID       string   `env:"KAFKA_CLIENT_ID" env-default:"riskgate"`
	ApprovalsTopic string   `env:"KAFKA_APPROVALS_TOPIC" env-default:"riskgate.approvals"`
	SecurityTopic  string   `env:"KAFKA_SECURITY_TOPIC" env-default:"riskgate.security"`
	EnsureTopics   bool     `env:"KAFKA_ENSURE_TOPICS" env-default:"true"`
}

type ChallengeConfig struct {
	ProviderURL      string        `env:"CHALLENGE_PROVIDER_URL" env-default:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
	ProviderSecret   string        `env:"CHALLENGE_PROVIDER_SECRET"`
	ExpectedHostname string        `env:"CHALLENGE_EXPECTED_HOSTNAME"`
	TTL              time.Duration `env:"CHALLENGE_TTL" env-default:"5m"`
	VerifyTimeout    time.Duration `env:"CHALLENGE_VERIFY_TIMEOUT" env-default:"3s"`
}

// ReputationConfig configures the IP reputation lookup. Without a URL only the
// local blocklist is consulted.
type ReputationConfig struct {
	URL       string        `env:"REPUTATION_URL"`
	APIKey    string        `env:"REPUTATION_API_KEY"`
	Timeout   time.Duration `env:"REPUTATION_TIMEOUT" env-default:"2s"`
	CacheTTL  time.Duration `env:"REPUTATION_CACHE_TTL" env-default:"30m"`
	Blocklist []string      `env:"IP_BLOCKLIST" env-separator:","`
}

// RiskConfig overrides scoring knobs. Zero values keep the built-in defaults.
type RiskConfig struct {
	WeightBot        float64       `env:"RISK_WEIGHT_BOT"`
	WeightIP         float64       `env:"RISK_WEIGHT_IP"`
	WeightTrust      float64       `env:"RISK_WEIGHT_TRUST"`
	WeightBehavioral float64       `env:"RISK_WEIGHT_BEHAVIORAL"`
	WeightVelocity   float64       `env:"RISK_WEIGHT_VELOCITY"`
	SoftChallengeAt  int           `env:"RISK_SOFT_CHALLENGE_AT"`
	HardChallengeAt  int           `env:"RISK_HARD_CHALLENGE_AT"`
	BlockAt          int           `env:"RISK_BLOCK_AT"`
	SignalTimeout    time.Duration `env:"RISK_SIGNAL_TIMEOUT" env-default:"2s"`
	CounterTimeout   time.Duration `env:"RATE_LIMIT_STORE_TIMEOUT" env-default:"250ms"`
}

// HasWeights reports whether any weight override is set. Overrides replace
// the whole weight set so the sum can be checked.
func (r RiskConfig) HasWeights() bool {
	return r.WeightBot != 0 || r.WeightIP != 0 || r.WeightTrust != 0 || r.WeightBehavioral != 0 || r.WeightVelocity != 0
}

// PayoutConfig overrides payout ceilings in whole currency units. Zero keeps
// the default.
type PayoutConfig struct {
	MaxPerTransaction int64 `env:"PAYOUT_MAX_PER_TRANSACTION"`
	NewAccountCeiling int64 `env:"PAYOUT_NEW_ACCOUNT_CEILING"`
	NewAccountDays    int   `env:"PAYOUT_NEW_ACCOUNT_DAYS"`
	Rolling24h        int64 `env:"PAYOUT_ROLLING_24H"`
	Monthly           int64 `env:"PAYOUT_MONTHLY"`
	ApprovalThreshold int64 `env:"PAYOUT_APPROVAL_THRESHOLD"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Admin.JWTSigningKey == "" {
		if c.Server.Env == "production" {
			return errors.New("ADMIN_JWT_SIGNING_KEY is required in production")
		}
		c.Admin.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if c.Challenge.ProviderSecret == "" && c.Server.Env == "production" {
		return errors.New("CHALLENGE_PROVIDER_SECRET is required in production")
	}
	switch c.Server.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Server.LogFormat)
	}
	if c.Challenge.TTL <= 0 || c.Challenge.VerifyTimeout <= 0 {
		return errors.New("challenge TTL and verify timeout must be positive")
	}
	if c.Reputation.Timeout <= 0 || c.Risk.SignalTimeout <= 0 {
		return errors.New("lookup timeouts must be positive")
	}
	return nil
}
