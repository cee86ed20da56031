package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	TeliaBaseURL  string `env:"TELIA_BASE_URL,default=https://api.opaali.telia.fi"`
	TeliaUsername string `env:"TELIA_USERNAME,required=true"`
	TeliaPassword string `env:"TELIA_PASSWORD,required=true"`
	TeliaMode     string `env:"TELIA_MODE,default=sandbox"`

	SenderAddress   string `env:"SENDER_ADDRESS,required=true"`
	SenderName      string `env:"SENDER_NAME"`
	CallbackBaseURL string `env:"CALLBACK_BASE_URL,required=true"`

	RetryDelaySeconds int `env:"RETRY_DELAY_SECONDS,default=10"`
	RetryPrefetch     int `env:"RETRY_PREFETCH,default=8"`
	TokenSettleMillis int `env:"TOKEN_SETTLE_MILLIS,default=1000"`
	RateLimitPerSec   int `env:"RATE_LIMIT_PER_SEC,default=0"`

	APIPort   int    `env:"API_PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	HTTPDebug bool   `env:"HTTP_DEBUG,default=false"`
}

func Load() (*Config, error) {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) RetryDelay() time.Duration {
	if c.RetryDelaySeconds <= 0 {
		return 0
	}
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c *Config) TokenSettleDelay() time.Duration {
	if c.TokenSettleMillis <= 0 {
		return 0
	}
	return time.Duration(c.TokenSettleMillis) * time.Millisecond
}
