package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment-driven settings.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Shared secret used to verify payment webhook signatures.
	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET,required"`

	KafkaBootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS,required"`
	KafkaEmailEventsTopic string `env:"KAFKA_EMAIL_EVENTS_TOPIC" envDefault:"email_events"`
	KafkaGroupID          string `env:"KAFKA_GROUP_ID" envDefault:"fulfillment_service_group"`

	SMTPHost     string `env:"SMTP_HOST,required"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER,required"`
	SMTPPassword string `env:"SMTP_PASSWORD,required"`
	MailFrom     string `env:"MAIL_FROM,required"`

	// Cron spec for the daily rollup; runs shortly after midnight UTC so
	// yesterday's events are fully closed.
	RollupCronSpec string `env:"ROLLUP_CRON" envDefault:"30 0 * * *"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
