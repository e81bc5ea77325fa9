package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	APIPort     int    `env:"API_PORT,default=8080"`
	// MetricsPort serves the worker's scrape endpoint; the API exposes
	// /metrics on APIPort instead.
	MetricsPort int    `env:"METRICS_PORT,default=9091"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// WhatsApp Cloud API credentials and endpoint. PhoneNumberID and
	// AccessToken may be empty; sends then fail fast without a network call.
	WhatsAppPhoneNumberID string `env:"WA_PHONE_NUMBER_ID"`
	WhatsAppAccessToken   string `env:"WA_ACCESS_TOKEN"`
	WhatsAppAPIBaseURL    string `env:"WA_API_BASE_URL,default=https://graph.facebook.com"`
	WhatsAppAPIVersion    string `env:"WA_API_VERSION,default=v18.0"`

	WebhookVerifyToken string `env:"WEBHOOK_VERIFY_TOKEN,required=true"`
	SiteName           string `env:"SITE_NAME"`

	SendRatePerSec     int  `env:"SEND_RATE_PER_SEC,default=50"`
	WorkerConcurrency  int  `env:"WORKER_CONCURRENCY,default=4"`
	MaxRetryAttempts   int  `env:"MAX_RETRY_ATTEMPTS,default=2"`
	RetryDelaySeconds  int  `env:"RETRY_DELAY_SECONDS,default=10"`
	ConsentEnforcement bool `env:"CONSENT_ENFORCEMENT,default=false"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
