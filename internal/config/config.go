package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string        `mapstructure:"PORT"`
	GinMode                          string        `mapstructure:"GIN_MODE"`
	AppEnv                           string        `mapstructure:"APP_ENV"`
	FirebaseProjectID                string        `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string        `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string        `mapstructure:"CLIENT_URL"`
	Timezone                         string        `mapstructure:"TIMEZONE"`
	ScanInterval                     time.Duration `mapstructure:"SCAN_INTERVAL"`
	ScanConcurrency                  int           `mapstructure:"SCAN_CONCURRENCY"`
	ScanOnStartup                    bool          `mapstructure:"SCAN_ON_STARTUP"`
	ProviderTimeout                  time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	PlansFile                        string        `mapstructure:"PLANS_FILE"`
	DashboardURL                     string        `mapstructure:"DASHBOARD_URL"`

	EmailProvider string `mapstructure:"EMAIL_PROVIDER"` // log, smtp or ses
	EmailFrom     string `mapstructure:"EMAIL_FROM"`
	SMTPHost      string `mapstructure:"SMTP_HOST"`
	SMTPPort      string `mapstructure:"SMTP_PORT"`
	SMTPUsername  string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword  string `mapstructure:"SMTP_PASSWORD"`
	AWSRegion     string `mapstructure:"AWS_REGION"`
	PushEnabled   bool   `mapstructure:"PUSH_ENABLED"`

	RedisURL     string `mapstructure:"REDIS_URL"`
	EventsBroker string `mapstructure:"EVENTS_BROKER"` // none, rabbitmq, nats or redis
	RabbitMQURL  string `mapstructure:"RABBITMQ_URL"`
	NATSURL      string `mapstructure:"NATS_URL"`
	EventsTopic  string `mapstructure:"EVENTS_TOPIC"`

	SlackBotToken     string `mapstructure:"SLACK_BOT_TOKEN"`
	SlackAlertChannel string `mapstructure:"SLACK_ALERT_CHANNEL"`
}

var keys = []string{
	"PORT", "GIN_MODE", "APP_ENV", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "CLIENT_URL", "TIMEZONE", "SCAN_INTERVAL",
	"SCAN_CONCURRENCY", "SCAN_ON_STARTUP", "PROVIDER_TIMEOUT", "PLANS_FILE", "DASHBOARD_URL",
	"EMAIL_PROVIDER", "EMAIL_FROM", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
	"AWS_REGION", "PUSH_ENABLED", "REDIS_URL", "EVENTS_BROKER", "RABBITMQ_URL", "NATS_URL",
	"EVENTS_TOPIC", "SLACK_BOT_TOKEN", "SLACK_ALERT_CHANNEL",
}

// LoadConfig loads configuration from environment variables using Viper.
// A .env file is honoured outside release mode.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("SCAN_INTERVAL", "1h")
	v.SetDefault("SCAN_CONCURRENCY", 4)
	v.SetDefault("SCAN_ON_STARTUP", true)
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("EMAIL_FROM", "no-reply@coachhub.app")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("EVENTS_BROKER", "none")
	v.SetDefault("EVENTS_TOPIC", "coachhub.events")

	if strings.ToLower(v.GetString("GIN_MODE")) != "release" {
		_ = godotenv.Load()
	}

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.ScanInterval <= 0 {
		return errors.New("SCAN_INTERVAL must be positive")
	}
	if c.ScanConcurrency <= 0 {
		c.ScanConcurrency = 1
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 10 * time.Second
	}

	c.EmailProvider = strings.ToLower(c.EmailProvider)
	switch c.EmailProvider {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			return errors.New("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case "ses":
		if c.AWSRegion == "" {
			return errors.New("AWS_REGION is required when EMAIL_PROVIDER=ses")
		}
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
	}

	c.EventsBroker = strings.ToLower(c.EventsBroker)
	switch c.EventsBroker {
	case "none", "":
		c.EventsBroker = "none"
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is required when EVENTS_BROKER=rabbitmq")
		}
	case "nats":
		if c.NATSURL == "" {
			return errors.New("NATS_URL is required when EVENTS_BROKER=nats")
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when EVENTS_BROKER=redis")
		}
	default:
		return fmt.Errorf("unsupported EVENTS_BROKER %q", c.EventsBroker)
	}
	return nil
}

// Location returns the time zone used for calendar-day arithmetic.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment reports whether error details may be exposed in responses.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c *Config) HTTPAddress() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
