package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	CodeStore   string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisPrefix string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	VerificationCodeTTL time.Duration

	Mail MailConfig

	AuthRatePerSecond  float64
	AuthRateBurst      int
	LoginRatePerSecond float64
	LoginRateBurst     int

	SentryDSN string
}

type MailConfig struct {
	Driver       string
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CODE_STORE", "database")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "verification_code:")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "postify")
	v.SetDefault("TOKEN_TTL", "168h")
	v.SetDefault("VERIFICATION_CODE_TTL", "10m")
	v.SetDefault("MAIL_DRIVER", "log")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("AUTH_RATE_PER_SECOND", 5)
	v.SetDefault("AUTH_RATE_BURST", 10)
	v.SetDefault("LOGIN_RATE_PER_SECOND", 2)
	v.SetDefault("LOGIN_RATE_BURST", 4)
	v.SetDefault("SENTRY_DSN", "")
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:   v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		HTTPAddr: v.GetString("HTTP_ADDR"),

		DatabaseDriver: strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),

		CodeStore:   strings.ToLower(v.GetString("CODE_STORE")),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		RedisPass:   v.GetString("REDIS_PASSWORD"),
		RedisDB:     v.GetInt("REDIS_DB"),
		RedisPrefix: v.GetString("REDIS_PREFIX"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTIssuer: v.GetString("JWT_ISSUER"),
		TokenTTL:  v.GetDuration("TOKEN_TTL"),

		VerificationCodeTTL: v.GetDuration("VERIFICATION_CODE_TTL"),

		Mail: MailConfig{
			Driver:       strings.ToLower(v.GetString("MAIL_DRIVER")),
			From:         v.GetString("MAIL_FROM"),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
		},

		AuthRatePerSecond:  v.GetFloat64("AUTH_RATE_PER_SECOND"),
		AuthRateBurst:      v.GetInt("AUTH_RATE_BURST"),
		LoginRatePerSecond: v.GetFloat64("LOGIN_RATE_PER_SECOND"),
		LoginRateBurst:     v.GetInt("LOGIN_RATE_BURST"),

		SentryDSN: v.GetString("SENTRY_DSN"),
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return nil, errors.New("DB_DRIVER must be postgres or sqlite")
	}
	switch cfg.CodeStore {
	case "database", "redis":
	default:
		return nil, errors.New("CODE_STORE must be database or redis")
	}
	switch cfg.Mail.Driver {
	case "log", "resend", "smtp":
	default:
		return nil, errors.New("MAIL_DRIVER must be log, resend or smtp")
	}
	return cfg, nil
}

// RequireServe checks the settings only the HTTP server needs.
func (c *Config) RequireServe() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}
