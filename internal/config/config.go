package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for the zenith server. Values come
// from an optional YAML file, then environment variables (a local .env file
// is loaded first when present).
type Config struct {
	Port     string `yaml:"port"`
	DBPath   string `yaml:"dbPath"`
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
	Timezone string `yaml:"timezone"`

	Auth      AuthConfig      `yaml:"auth"`
	AI        AIConfig        `yaml:"ai"`
	Bus       BusConfig       `yaml:"bus"`
	Push      PushConfig      `yaml:"push"`
	Backup    BackupConfig    `yaml:"backup"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

type AIConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	GeminiAPIKey  string `yaml:"geminiAPIKey"`
	OpenAIBaseURL string `yaml:"openaiBaseURL"`
	OpenAIAPIKey  string `yaml:"openaiAPIKey"`
}

// Configured reports whether the selected provider has a credential.
func (c AIConfig) Configured() bool {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey != "" && c.OpenAIBaseURL != ""
	default:
		return c.GeminiAPIKey != ""
	}
}

type BusConfig struct {
	Driver    string `yaml:"driver"`
	RedisAddr string `yaml:"redisAddr"`
	NATSURL   string `yaml:"natsURL"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapidPublicKey"`
	VAPIDPrivateKey string `yaml:"vapidPrivateKey"`
	Subscriber      string `yaml:"subscriber"`
}

type BackupConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Passphrase string `yaml:"passphrase"`
}

type RateLimitConfig struct {
	AIRequests int           `yaml:"aiRequests"`
	AIWindow   time.Duration `yaml:"aiWindow"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:     "8080",
		DBPath:   "zenith.db",
		LogLevel: "info",
		Timezone: "Local",
		AI: AIConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
		},
		Bus: BusConfig{Driver: "local"},
		Push: PushConfig{
			Subscriber: "mailto:noreply@zenith.app",
		},
		Backup: BackupConfig{Region: "auto"},
		RateLimit: RateLimitConfig{
			AIRequests: 20,
			AIWindow:   time.Minute,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// ZENITH_CONFIG is consulted; a missing file is not an error when neither
// is set.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("ZENITH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "ZENITH_PORT")
	setString(&cfg.DBPath, "ZENITH_DB_PATH")
	setString(&cfg.LogLevel, "ZENITH_LOG_LEVEL")
	setString(&cfg.LogFile, "ZENITH_LOG_FILE")
	setString(&cfg.Timezone, "ZENITH_TIMEZONE")

	setString(&cfg.Auth.JWTSecret, "ZENITH_JWT_SECRET")
	setString(&cfg.Auth.Issuer, "ZENITH_JWT_ISSUER")
	setString(&cfg.Auth.Audience, "ZENITH_JWT_AUDIENCE")

	setString(&cfg.AI.Provider, "ZENITH_AI_PROVIDER")
	setString(&cfg.AI.Model, "ZENITH_AI_MODEL")
	setString(&cfg.AI.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.AI.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.AI.OpenAIAPIKey, "OPENAI_API_KEY")

	setString(&cfg.Bus.Driver, "ZENITH_BUS_DRIVER")
	setString(&cfg.Bus.RedisAddr, "ZENITH_REDIS_ADDR")
	setString(&cfg.Bus.NATSURL, "ZENITH_NATS_URL")

	setString(&cfg.Push.VAPIDPublicKey, "ZENITH_VAPID_PUBLIC_KEY")
	setString(&cfg.Push.VAPIDPrivateKey, "ZENITH_VAPID_PRIVATE_KEY")
	setString(&cfg.Push.Subscriber, "ZENITH_VAPID_SUBSCRIBER")

	setString(&cfg.Backup.Endpoint, "ZENITH_S3_ENDPOINT")
	setString(&cfg.Backup.Bucket, "ZENITH_S3_BUCKET")
	setString(&cfg.Backup.Region, "ZENITH_S3_REGION")
	setString(&cfg.Backup.AccessKey, "ZENITH_S3_ACCESS_KEY")
	setString(&cfg.Backup.SecretKey, "ZENITH_S3_SECRET_KEY")
	setString(&cfg.Backup.Passphrase, "ZENITH_BACKUP_PASSPHRASE")

	if v := os.Getenv("ZENITH_AI_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.AIRequests = n
		}
	}
	if v := os.Getenv("ZENITH_AI_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimit.AIWindow = d
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate checks required fields and enumerations.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	if c.DBPath == "" {
		return errors.New("config: dbPath is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwtSecret is required (set ZENITH_JWT_SECRET)")
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Bus.Driver {
	case "local":
	case "redis":
		if c.Bus.RedisAddr == "" {
			return errors.New("config: bus.redisAddr is required for the redis driver")
		}
	case "nats":
		if c.Bus.NATSURL == "" {
			return errors.New("config: bus.natsURL is required for the nats driver")
		}
	default:
		return fmt.Errorf("config: unknown bus.driver %q", c.Bus.Driver)
	}
	if c.RateLimit.AIRequests <= 0 || c.RateLimit.AIWindow <= 0 {
		return errors.New("config: rateLimit values must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

// Location resolves the configured time zone used for reminders.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
