package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/envutil"
	"github.com/coursepilot/backend/internal/platform/logger"
)

type Config struct {
	Port    string `yaml:"port"`
	LogMode string `yaml:"log_mode"`

	JWTSecretKey    string        `yaml:"jwt_secret_key"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	YouTubeAPIKey string `yaml:"youtube_api_key"`

	WorkerMaxAttempts  int           `yaml:"worker_max_attempts"`
	WorkerRetryDelay   time.Duration `yaml:"worker_retry_delay"`
	WorkerStaleRunning time.Duration `yaml:"worker_stale_running"`
}

// Load reads the optional YAML file named by CONFIG_FILE, then lets env vars
// override whatever the file set.
func Load(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:               "8080",
		LogMode:            "development",
		JWTSecretKey:       "defaultsecret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		WorkerMaxAttempts:  5,
		WorkerRetryDelay:   30 * time.Second,
		WorkerStaleRunning: 2 * time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("loaded config file", "path", path)
		}
	}

	cfg.Port = envutil.Str("PORT", cfg.Port)
	cfg.LogMode = envutil.Str("LOG_MODE", cfg.LogMode)
	cfg.JWTSecretKey = envutil.Str("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)
	cfg.RefreshTokenTTL = envutil.Duration("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL)
	cfg.OpenAIAPIKey = envutil.Str("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.YouTubeAPIKey = envutil.Str("YOUTUBE_API_KEY", cfg.YouTubeAPIKey)
	cfg.WorkerMaxAttempts = envutil.Int("WORKER_MAX_ATTEMPTS", cfg.WorkerMaxAttempts)
	cfg.WorkerRetryDelay = envutil.Duration("WORKER_RETRY_DELAY", cfg.WorkerRetryDelay)
	cfg.WorkerStaleRunning = envutil.Duration("WORKER_STALE_RUNNING", cfg.WorkerStaleRunning)

	return cfg, nil
}

// Validate is the startup ready-check. A missing text generation credential is
// fatal; a missing video credential is not, the resolver degrades to empty
// results instead.
func (c Config) Validate(log *logger.Logger) error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return apierr.Configuration(fmt.Errorf("missing OPENAI_API_KEY"))
	}
	if c.WorkerMaxAttempts < 1 {
		return apierr.Configuration(fmt.Errorf("WORKER_MAX_ATTEMPTS must be >= 1, got %d", c.WorkerMaxAttempts))
	}
	if strings.TrimSpace(c.YouTubeAPIKey) == "" && log != nil {
		log.Warn("YOUTUBE_API_KEY not set; chapter videos will be empty")
	}
	return nil
}
