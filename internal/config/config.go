package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	MidtransSandboxURL    = "https://api.sandbox.midtrans.com"
	MidtransProductionURL = "https://api.midtrans.com"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Midtrans  MidtransConfig
	Auth      AuthConfig
	Voucher   VoucherConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:":8084"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	AllowOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type DatabaseConfig struct {
	DSN          string        `envconfig:"POSTGRES_DSN" required:"true"`
	MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	MaxLifetime  time.Duration `envconfig:"DB_MAX_LIFETIME" default:"5m"`
	AutoMigrate  bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	Enabled bool          `envconfig:"REDIS_ENABLED" default:"true"`
	Addr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	LockTTL time.Duration `envconfig:"ORDER_LOCK_TTL" default:"10s"`
}

type KafkaConfig struct {
	Enabled            bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers            []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID            string   `envconfig:"KAFKA_GROUP_ID" default:"wifihub-sse"`
	OrderCreatedTopic  string   `envconfig:"KAFKA_TOPIC_ORDER_CREATED" default:"wifihub.order.created"`
	StatusChangedTopic string   `envconfig:"KAFKA_TOPIC_ORDER_STATUS" default:"wifihub.order.status_changed"`
}

type MidtransConfig struct {
	ServerKey       string        `envconfig:"MIDTRANS_SERVER_KEY"`
	ClientKey       string        `envconfig:"MIDTRANS_CLIENT_KEY"`
	IsProduction    bool          `envconfig:"MIDTRANS_IS_PRODUCTION" default:"false"`
	BaseURLOverride string        `envconfig:"MIDTRANS_BASE_URL"`
	Timeout         time.Duration `envconfig:"MIDTRANS_TIMEOUT" default:"30s"`
	FinishURL       string        `envconfig:"MIDTRANS_FINISH_URL"`
	VerifySignature bool          `envconfig:"MIDTRANS_VERIFY_SIGNATURE" default:"true"`
}

// BaseURL picks the Snap API host for the configured environment.
func (m MidtransConfig) BaseURL() string {
	if m.BaseURLOverride != "" {
		return m.BaseURLOverride
	}
	if m.IsProduction {
		return MidtransProductionURL
	}
	return MidtransSandboxURL
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type VoucherConfig struct {
	ProfileName string `envconfig:"VOUCHER_PROFILE_NAME" default:"default"`
	QRSize      int    `envconfig:"VOUCHER_QR_SIZE" default:"256"`
	LoginURL    string `envconfig:"HOTSPOT_LOGIN_URL" default:"http://hotspot.wifihub.local/login"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" default:"20"`
	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `envconfig:"RATE_LIMIT_TRUSTED_PROXIES"`
}

// LoadEnv reads key=value files into the process environment. Variables that
// are already set win over the file.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

// LoadDatabase reads only the database section, for tools that do not need
// the service secrets.
func LoadDatabase() (*DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process database config: %w", err)
	}
	return &cfg, nil
}
