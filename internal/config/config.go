// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	AdminPassword string        `yaml:"admin_password"`
	JWTSecret     string        `yaml:"jwt_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

type AIConfig struct {
	Provider      string        `yaml:"provider"` // gemini | openai | noop
	GeminiURL     string        `yaml:"gemini_url"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	DefaultModel  string        `yaml:"default_model"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
}

type CredentialsConfig struct {
	Store string   `yaml:"store"` // memory | redis
	Keys  []string `yaml:"keys"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type BatchConfig struct {
	MaxImages    int           `yaml:"max_images"`
	MaxFileSize  int64         `yaml:"max_file_size"`
	MaxDimension int           `yaml:"max_dimension"` // 0 keeps the original size
	AllowedTypes []string      `yaml:"allowed_types"`
	Retention    time.Duration `yaml:"retention"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type UIConfig struct {
	Lang string `yaml:"lang"` // fa | en
}

type Config struct {
	Log         LogConfig         `yaml:"log"`
	HTTP        HTTPConfig        `yaml:"http"`
	AI          AIConfig          `yaml:"ai"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Redis       RedisConfig       `yaml:"redis"`
	Security    SecurityConfig    `yaml:"security"`
	Batch       BatchConfig       `yaml:"batch"`
	Events      EventsConfig      `yaml:"events"`
	UI          UIConfig          `yaml:"ui"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. A missing file is not an error when
// dev is set; everything then comes from defaults and the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && dev:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.Runtime.Dev = dev
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OCR_API_KEYS"); v != "" {
		cfg.Credentials.Keys = splitList(v)
	}
	if v := os.Getenv("OCR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OCR_JWT_SECRET"); v != "" {
		cfg.HTTP.JWTSecret = v
	}
	if v := os.Getenv("OCR_ADMIN_PASSWORD"); v != "" {
		cfg.HTTP.AdminPassword = v
	}
	if v := os.Getenv("OCR_ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptionKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.SessionTTL <= 0 {
		cfg.HTTP.SessionTTL = 30 * time.Minute
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-1.5-flash"
	}
	if cfg.AI.OpenAIBaseURL == "" {
		cfg.AI.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 60 * time.Second
	}
	if cfg.Credentials.Store == "" {
		cfg.Credentials.Store = "memory"
	}
	cfg.Credentials.Store = strings.ToLower(cfg.Credentials.Store)
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "ocr"
	}
	if cfg.Batch.MaxImages <= 0 {
		cfg.Batch.MaxImages = 15
	}
	if cfg.Batch.MaxFileSize <= 0 {
		cfg.Batch.MaxFileSize = 10 * 1024 * 1024 // 10MB
	}
	if len(cfg.Batch.AllowedTypes) == 0 {
		cfg.Batch.AllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/bmp", "image/tiff"}
	}
	if cfg.Batch.Retention <= 0 {
		cfg.Batch.Retention = 24 * time.Hour
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "ocr.events"
	}
	if cfg.UI.Lang == "" {
		cfg.UI.Lang = "fa"
	}
}

// Validate checks settings that have no sane default.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "gemini", "openai", "noop":
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	switch c.Credentials.Store {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when credentials.store is redis")
		}
		if n := len(c.Security.EncryptionKey); n != 16 && n != 24 && n != 32 {
			return errors.New("security.encryption_key must be 16, 24 or 32 bytes when credentials.store is redis")
		}
	default:
		return fmt.Errorf("credentials.store %q is not supported", c.Credentials.Store)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
