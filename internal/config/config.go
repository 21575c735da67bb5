package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var ErrMissingToken = errors.New("DISCORD_TOKEN is required")

type Config struct {
	DiscordToken      string        `yaml:"discord_token"`
	Prefix            string        `yaml:"prefix"`
	WarningsPath      string        `yaml:"warnings_path"`
	BlacklistPath     string        `yaml:"blacklist_path"`
	LogChannelName    string        `yaml:"log_channel_name"`
	MutedRoleName     string        `yaml:"muted_role_name"`
	GreetingPhrase    string        `yaml:"greeting_phrase"`
	PurgeReplySeconds int           `yaml:"purge_reply_seconds"`
	EmbedColor        int           `yaml:"embed_color"`
	LogLevel          string        `yaml:"log_level"`
	Health            HealthConfig  `yaml:"health"`
	Welcome           WelcomeConfig `yaml:"welcome"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type WelcomeConfig struct {
	Enabled bool `yaml:"enabled"`
	DM      bool `yaml:"dm"`
}

func DefaultConfig() Config {
	return Config{
		Prefix:            "!",
		WarningsPath:      "data/warnings.json",
		BlacklistPath:     "data/blacklist.json",
		LogChannelName:    "mod-log",
		MutedRoleName:     "Muted",
		GreetingPhrase:    "hello bot",
		PurgeReplySeconds: 5,
		EmbedColor:        0x5865F2,
		LogLevel:          "info",
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Welcome:           WelcomeConfig{Enabled: true, DM: true},
	}
}

// Load reads an optional .env file, then the YAML file at CONFIG_PATH
// (default config.yaml), then environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, ErrMissingToken
	}
	normalize(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.Prefix = envString("COMMAND_PREFIX", cfg.Prefix)
	cfg.WarningsPath = envString("WARNINGS_PATH", cfg.WarningsPath)
	cfg.BlacklistPath = envString("BLACKLIST_PATH", cfg.BlacklistPath)
	cfg.LogChannelName = envString("LOG_CHANNEL_NAME", cfg.LogChannelName)
	cfg.MutedRoleName = envString("MUTED_ROLE_NAME", cfg.MutedRoleName)
	cfg.GreetingPhrase = envString("GREETING_PHRASE", cfg.GreetingPhrase)
	cfg.PurgeReplySeconds = envInt("PURGE_REPLY_SECONDS", cfg.PurgeReplySeconds)
	cfg.EmbedColor = envInt("EMBED_COLOR", cfg.EmbedColor)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Welcome.Enabled = envBool("WELCOME_ENABLED", cfg.Welcome.Enabled)
	cfg.Welcome.DM = envBool("WELCOME_DM", cfg.Welcome.DM)
}

func normalize(cfg *Config) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = defaults.Prefix
	}
	if cfg.LogChannelName == "" {
		cfg.LogChannelName = defaults.LogChannelName
	}
	if cfg.MutedRoleName == "" {
		cfg.MutedRoleName = defaults.MutedRoleName
	}
	if cfg.PurgeReplySeconds <= 0 {
		cfg.PurgeReplySeconds = defaults.PurgeReplySeconds
	}
	cfg.GreetingPhrase = strings.ToLower(strings.TrimSpace(cfg.GreetingPhrase))
}

func (c Config) PurgeReplyDelay() time.Duration {
	return time.Duration(c.PurgeReplySeconds) * time.Second
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
