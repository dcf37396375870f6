package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/jghoshh/habitsync/lib/logging"
)

const (
	// StorageMongo stores users, habits and completions in MongoDB.
	StorageMongo = "mongo"
	// StorageMemory keeps everything in process memory. Meant for local runs and tests.
	StorageMemory = "memory"
)

// Config is the full runtime configuration of the backend, read from the environment.
type Config struct {
	ServerURL     string        `env:"SERVER_URL,default=http://localhost:8080"`
	SigningKey    string        `env:"JWT_SIGNING_KEY"`
	TokenTTL      time.Duration `env:"TOKEN_TTL,default=24h"`
	StorageDriver string        `env:"STORAGE_DRIVER,default=mongo"`
	MongoURI      string        `env:"MONGODB_URI"`
	DBName        string        `env:"DB_NAME,default=habitsync"`
	RedisURL      string        `env:"REDIS_URL"`
	RabbitMQURL   string        `env:"RABBITMQ_URL"`
	SMTPHost      string        `env:"SMTP_HOST,default=smtp.gmail.com"`
	SMTPPort      int           `env:"SMTP_PORT,default=587"`
	SMTPEmail     string        `env:"SMTP_EMAIL"`
	SMTPPassword  string        `env:"SMTP_PASSWORD"`
	Consumers     int           `env:"NOTIFICATION_CONSUMERS,default=2"`
	TimeZone      string        `env:"TIMEZONE,default=Local"`
	LogLevel      string        `env:"LOG_LEVEL,default=info"`
	LogFormat     string        `env:"LOG_FORMAT,default=json"`
}

// Load reads the given .env files (if they exist) into the process environment and
// decodes the environment into a Config. Variables already set in the environment win
// over values from the files.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			logging.Debug().Str("file", file).Err(err).Msg("env file not loaded")
		}
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations of settings that envdecode cannot express.
func (c *Config) Validate() error {
	if c.SigningKey == "" {
		return errors.New("JWT_SIGNING_KEY must be set")
	}

	switch c.StorageDriver {
	case StorageMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI must be set when STORAGE_DRIVER is mongo")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if _, err := url.Parse(c.ServerURL); err != nil {
		return fmt.Errorf("invalid SERVER_URL: %w", err)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if c.Consumers < 1 {
		c.Consumers = 1
	}
	return nil
}

// Location resolves TimeZone. Completion dates default to the calendar day in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// ListenAddr returns the host:port part of ServerURL.
func (c *Config) ListenAddr() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" {
		return ":8080"
	}
	return u.Host
}

// NotificationsEnabled reports whether a broker is configured for reminder notifications.
func (c *Config) NotificationsEnabled() bool {
	return c.RabbitMQURL != ""
}
