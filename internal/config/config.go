package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
	BlobLocal   = "local"
	BlobS3      = "s3"
)

type Config struct {
	Port             string        `mapstructure:"API_PORT"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	MongoURI         string        `mapstructure:"MONGO_URI"`
	MongoDatabase    string        `mapstructure:"MONGO_DATABASE"`
	StoreDriver      string        `mapstructure:"STORE_DRIVER"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTTTL           time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RatingCacheTTL   time.Duration `mapstructure:"RATING_CACHE_TTL"`
	BlobDriver       string        `mapstructure:"BLOB_DRIVER"`
	UploadDir        string        `mapstructure:"UPLOAD_DIR"`
	S3Bucket         string        `mapstructure:"S3_BUCKET"`
	AWSRegion        string        `mapstructure:"AWS_REGION"`
	AWSEndpoint      string        `mapstructure:"AWS_ENDPOINT"`
	TextbeltAPIKey   string        `mapstructure:"TEXTBELT_API_KEY"`
	TextbeltURL      string        `mapstructure:"TEXTBELT_URL"`
	ReminderSchedule string        `mapstructure:"REMINDER_SCHEDULE"`
	RemindersEnabled bool          `mapstructure:"REMINDERS_ENABLED"`
}

var keys = []string{
	"API_PORT", "ENV", "LOG_LEVEL",
	"MONGO_URI", "MONGO_DATABASE", "STORE_DRIVER",
	"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS",
	"REDIS_ADDR", "REDIS_PASSWORD", "RATING_CACHE_TTL",
	"BLOB_DRIVER", "UPLOAD_DIR", "S3_BUCKET", "AWS_REGION", "AWS_ENDPOINT",
	"TEXTBELT_API_KEY", "TEXTBELT_URL",
	"REMINDER_SCHEDULE", "REMINDERS_ENABLED",
}

// Load reads the configuration from the environment. Call godotenv first if
// a .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_DATABASE", "telehealth")
	v.SetDefault("STORE_DRIVER", "mongo")
	v.SetDefault("JWT_TTL", "720h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATING_CACHE_TTL", "10m")
	v.SetDefault("BLOB_DRIVER", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("TEXTBELT_URL", "https://textbelt.com/text")
	v.SetDefault("REMINDER_SCHEDULE", "0 18 * * *")
	v.SetDefault("REMINDERS_ENABLED", true)

	// AutomaticEnv alone is not seen by Unmarshal.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER is \"mongo\"")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be \"mongo\" or \"memory\", got %q", c.StoreDriver)
	}

	switch c.BlobDriver {
	case BlobLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when BLOB_DRIVER is \"local\"")
		}
	case BlobS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_DRIVER is \"s3\"")
		}
	default:
		return fmt.Errorf("BLOB_DRIVER must be \"local\" or \"s3\", got %q", c.BlobDriver)
	}

	if c.JWTSecret == "" && !c.IsDev() {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	return nil
}
