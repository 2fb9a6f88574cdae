package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RestrictNone      = "no"
	RestrictBlacklist = "blacklist"
	RestrictWhitelist = "whitelist"
)

type Config struct {
	DatabaseURL string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	HTTPAddress  string
	CookieDomain string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration

	VerificationCodeLifespan time.Duration
	VerificationCodeAlphabet string

	RestrictEmailDomains   string
	RestrictedEmailDomains []string

	SMTPHost     string
	SMTPPort     int
	SMTPUseTLS   bool
	SMTPUsername string
	SMTPPassword string

	MailFromName    string
	MailFromAddress string
	MailPoolSize    int
	MailWorkers     int
	MailQueueSize   int

	AllowedOrigins   []string
	AllowCredentials bool
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	keys := []string{
		"DATABASE_URL",
		"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB",
		"HTTP_ADDRESS", "COOKIE_DOMAIN",
		"JWT_PRIVATE_KEY_PATH", "JWT_PUBLIC_KEY_PATH", "JWT_ISSUER",
		"ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
		"VERIFICATION_CODE_LIFESPAN", "VERIFICATION_CODE_ALPHABET",
		"RESTRICT_EMAIL_DOMAINS", "RESTRICTED_EMAIL_DOMAINS",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USE_TLS", "SMTP_USERNAME", "SMTP_PASSWORD",
		"MAIL_FROM_NAME", "MAIL_FROM_ADDRESS",
		"MAIL_POOL_SIZE", "MAIL_WORKERS", "MAIL_QUEUE_SIZE",
		"ALLOWED_ORIGINS", "ALLOW_CREDENTIALS",
	}
	for _, k := range keys {
		if err := viper.BindEnv(k); err != nil {
			return nil, err
		}
	}

	viper.SetDefault("HTTP_ADDRESS", ":8080")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("ACCESS_TOKEN_TTL", "15m")
	viper.SetDefault("REFRESH_TOKEN_TTL", "720h")
	viper.SetDefault("VERIFICATION_CODE_LIFESPAN", "300s")
	viper.SetDefault("VERIFICATION_CODE_ALPHABET",
		"123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz")
	viper.SetDefault("RESTRICT_EMAIL_DOMAINS", RestrictWhitelist)
	viper.SetDefault("RESTRICTED_EMAIL_DOMAINS", "qq.com,163.com,126.com,gmail.com,outlook.com")
	viper.SetDefault("MAIL_FROM_NAME", "tw-account")
	viper.SetDefault("MAIL_POOL_SIZE", 10)
	viper.SetDefault("MAIL_WORKERS", 4)
	viper.SetDefault("MAIL_QUEUE_SIZE", 128)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file, %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:              viper.GetString("DATABASE_URL"),
		RedisAddress:             viper.GetString("REDIS_ADDRESS"),
		RedisPassword:            viper.GetString("REDIS_PASSWORD"),
		RedisDB:                  viper.GetInt("REDIS_DB"),
		HTTPAddress:              viper.GetString("HTTP_ADDRESS"),
		CookieDomain:             viper.GetString("COOKIE_DOMAIN"),
		JWTPrivateKeyPath:        viper.GetString("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:         viper.GetString("JWT_PUBLIC_KEY_PATH"),
		JWTIssuer:                viper.GetString("JWT_ISSUER"),
		AccessTokenTTL:           viper.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:          viper.GetDuration("REFRESH_TOKEN_TTL"),
		VerificationCodeLifespan: viper.GetDuration("VERIFICATION_CODE_LIFESPAN"),
		VerificationCodeAlphabet: viper.GetString("VERIFICATION_CODE_ALPHABET"),
		RestrictEmailDomains:     viper.GetString("RESTRICT_EMAIL_DOMAINS"),
		RestrictedEmailDomains:   splitList(viper.GetString("RESTRICTED_EMAIL_DOMAINS")),
		SMTPHost:                 viper.GetString("SMTP_HOST"),
		SMTPPort:                 viper.GetInt("SMTP_PORT"),
		SMTPUseTLS:               viper.GetBool("SMTP_USE_TLS"),
		SMTPUsername:             viper.GetString("SMTP_USERNAME"),
		SMTPPassword:             viper.GetString("SMTP_PASSWORD"),
		MailFromName:             viper.GetString("MAIL_FROM_NAME"),
		MailFromAddress:          viper.GetString("MAIL_FROM_ADDRESS"),
		MailPoolSize:             viper.GetInt("MAIL_POOL_SIZE"),
		MailWorkers:              viper.GetInt("MAIL_WORKERS"),
		MailQueueSize:            viper.GetInt("MAIL_QUEUE_SIZE"),
		AllowedOrigins:           splitList(viper.GetString("ALLOWED_ORIGINS")),
		AllowCredentials:         viper.GetBool("ALLOW_CREDENTIALS"),
	}

	required := map[string]string{
		"DATABASE_URL":         cfg.DatabaseURL,
		"REDIS_ADDRESS":        cfg.RedisAddress,
		"JWT_PRIVATE_KEY_PATH": cfg.JWTPrivateKeyPath,
		"JWT_PUBLIC_KEY_PATH":  cfg.JWTPublicKeyPath,
		"SMTP_HOST":            cfg.SMTPHost,
		"MAIL_FROM_ADDRESS":    cfg.MailFromAddress,
	}
	for k, v := range required {
		if v == "" {
			return nil, fmt.Errorf("%s is not set", k)
		}
	}

	switch cfg.RestrictEmailDomains {
	case RestrictNone, RestrictBlacklist, RestrictWhitelist:
	default:
		return nil, fmt.Errorf("RESTRICT_EMAIL_DOMAINS must be one of no, blacklist, whitelist; got %q",
			cfg.RestrictEmailDomains)
	}
	if cfg.VerificationCodeAlphabet == "" {
		return nil, fmt.Errorf("VERIFICATION_CODE_ALPHABET must not be empty")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
