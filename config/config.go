package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"syria-gpt"`

	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	VerificationTokenTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`
	ResetTokenTTL        time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	TwoFactorTTL         time.Duration `env:"TWO_FACTOR_TTL" envDefault:"10m"`
	TOTPIssuer           string        `env:"TOTP_ISSUER" envDefault:"SyriaGPT"`
	RequireVerifiedEmail bool          `env:"AUTH_REQUIRE_VERIFIED_EMAIL" envDefault:"false"`
	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"0"`

	// TwoFactorStore selects where 2FA challenges live: "gorm" or "redis".
	TwoFactorStore string `env:"TWO_FACTOR_STORE" envDefault:"gorm"`
	RedisURL       string `env:"REDIS_URL"`
	RedisPrefix    string `env:"REDIS_PREFIX" envDefault:"2fa"`

	PurgeSchedule string `env:"PURGE_SCHEDULE"`

	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	AppBaseURL   string `env:"APP_BASE_URL"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM"`

	Google   OAuthClient `envPrefix:"GOOGLE_"`
	Facebook OAuthClient `envPrefix:"FACEBOOK_"`
}

type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URI"`
}

// Load reads .env when present and parses the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.TwoFactorStore {
	case "gorm":
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("REDIS_URL is required when TWO_FACTOR_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown TWO_FACTOR_STORE %q", c.TwoFactorStore)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

// NewLogger builds the JSON logger used by every command.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
