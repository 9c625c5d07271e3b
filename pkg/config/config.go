package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Mail       MailConfig
	Tokens     TokenConfig
	Digest     DigestConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type AppConfig struct {
	// BaseURL is used to build absolute links in outgoing emails.
	BaseURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

type MailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
	// LeadRecipients receive every "new lead" notification in addition to
	// the organisation owner.
	LeadRecipients []string
}

type TokenConfig struct {
	VerificationExpiryHours int
	InviteExpiryHours       int
}

type DigestConfig struct {
	// Cron is a five-field cron expression. Empty disables the digest.
	Cron string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (m *MailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.SMTPHost, m.SMTPPort)
}

func (t *TokenConfig) VerificationExpiry() time.Duration {
	return time.Duration(t.VerificationExpiryHours) * time.Hour
}

func (t *TokenConfig) InviteExpiry() time.Duration {
	return time.Duration(t.InviteExpiryHours) * time.Hour
}

const defaultJWTSecret = "change-me-in-production"

// ErrInsecureJWTSecret is returned outside development when JWT_SECRET is
// unset or left at its default. The secret also keys account links.
var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set outside development")

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "gocrm")
	v.SetDefault("DATABASE_PASSWORD", "gocrm_secret")
	v.SetDefault("DATABASE_NAME", "gocrm")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "noreply@go-crm.local")
	v.SetDefault("LEAD_NOTIFY_RECIPIENTS", "")
	v.SetDefault("VERIFICATION_TOKEN_EXPIRY_HOURS", 72)
	v.SetDefault("INVITE_TOKEN_EXPIRY_HOURS", 168)
	v.SetDefault("DIGEST_CRON", "0 8 * * 1-5")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		App: AppConfig{
			BaseURL: strings.TrimRight(v.GetString("BASE_URL"), "/"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Mail: MailConfig{
			SMTPHost:       v.GetString("SMTP_HOST"),
			SMTPPort:       v.GetInt("SMTP_PORT"),
			Username:       v.GetString("SMTP_USERNAME"),
			Password:       v.GetString("SMTP_PASSWORD"),
			From:           v.GetString("MAIL_FROM"),
			LeadRecipients: splitList(v.GetString("LEAD_NOTIFY_RECIPIENTS")),
		},
		Tokens: TokenConfig{
			VerificationExpiryHours: v.GetInt("VERIFICATION_TOKEN_EXPIRY_HOURS"),
			InviteExpiryHours:       v.GetInt("INVITE_TOKEN_EXPIRY_HOURS"),
		},
		Digest: DigestConfig{
			Cron: strings.TrimSpace(v.GetString("DIGEST_CRON")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.IsDevelopment() {
		return nil
	}
	if secret := strings.TrimSpace(c.JWT.Secret); secret == "" || secret == defaultJWTSecret {
		return ErrInsecureJWTSecret
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
