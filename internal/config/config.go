package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
	"github.com/shopspring/decimal"
)

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Server    ServerConfig    `koanf:"server"`
	Daraja    DarajaConfig    `koanf:"daraja"`
	Directory DirectoryConfig `koanf:"directory"`
	Callback  CallbackConfig  `koanf:"callback"`
	Alert     AlertConfig     `koanf:"alert"`
	Worker    WorkerConfig    `koanf:"worker"`
	Logger    LoggerConfig    `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DarajaConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required"`
	ConsumerKey    string        `koanf:"consumer_key" validate:"required"`
	ConsumerSecret string        `koanf:"consumer_secret" validate:"required"`
	ShortCode      string        `koanf:"short_code" validate:"required"`
	Passkey        string        `koanf:"passkey" validate:"required"`
	CallbackURL    string        `koanf:"callback_url" validate:"required"`
	Timeout        time.Duration `koanf:"timeout" validate:"required"`
	// Amount is the flat subscription fee pushed to the user's phone.
	Amount string `koanf:"amount" validate:"required,numeric"`
}

// AmountDecimal parses the configured fee. Validation guarantees the field
// is numeric, so failures here mean the config was bypassed.
func (c DarajaConfig) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Amount)
}

type DirectoryConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required"`
	APIUser string        `koanf:"api_user" validate:"required"`
	APIKey  string        `koanf:"api_key" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"required"`
	// Groups maps a normalized category name to a destination group id.
	Groups       map[string]string `koanf:"groups"`
	DefaultGroup string            `koanf:"default_group" validate:"required"`
}

// UntrustedPolicy decides what happens to a callback whose origin and token
// both fail to verify. Both observed deployments are legitimate, so this is
// configuration, not code.
type UntrustedPolicy string

const (
	PolicyAlertAndContinue UntrustedPolicy = "alert_and_continue"
	PolicyReject           UntrustedPolicy = "reject"
)

type CallbackConfig struct {
	// AllowedOrigins is a comma-separated list of permitted client origins.
	// Empty disables the origin check.
	AllowedOrigins string `koanf:"allowed_origins"`
	// SharedSecret enables token validation when set.
	SharedSecret    string          `koanf:"shared_secret"`
	UntrustedPolicy UntrustedPolicy `koanf:"untrusted_policy" validate:"required,oneof=alert_and_continue reject"`
}

// Origins returns the allowlist as a set-friendly slice.
func (c CallbackConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type AlertConfig struct {
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout" validate:"required"`
}

type WorkerConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required"`
	// MaxPendingAge bounds how long an unconfirmed intent may sit in the
	// store before the sweep reclaims it.
	MaxPendingAge time.Duration `koanf:"max_pending_age" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds the process logger at the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
