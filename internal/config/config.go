package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AuthModeDev = "dev"
	AuthModeJWT = "jwt"
	AuthModeIAM = "iam"

	// los tokens QR viven minutos, no horas
	maxTokenTTL = 15 * time.Minute
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	AppName   string `mapstructure:"APP_NAME"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DBDSN           string        `mapstructure:"DB_DSN"`
	DBMaxOpenConns  int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns  int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBRetryAttempts int           `mapstructure:"DB_RETRY_ATTEMPTS"`
	DBRetryBackoff  time.Duration `mapstructure:"DB_RETRY_BACKOFF"`

	AuthMode        string        `mapstructure:"AUTH_MODE"`
	AuthJWTSecret   string        `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWTIssuer   string        `mapstructure:"AUTH_JWT_ISSUER"`
	AuthJWTAudience string        `mapstructure:"AUTH_JWT_AUDIENCE"`
	IAMBaseURL      string        `mapstructure:"IAM_BASE_URL"`
	IAMAPIKey       string        `mapstructure:"IAM_API_KEY"`
	IAMTimeout      time.Duration `mapstructure:"IAM_TIMEOUT"`

	QRTokenTTL           time.Duration `mapstructure:"QR_TOKEN_TTL"`
	ConsentMaxDuration   time.Duration `mapstructure:"CONSENT_MAX_DURATION"`
	TokenCleanupInterval time.Duration `mapstructure:"TOKEN_CLEANUP_INTERVAL"`
	TokenRetention       time.Duration `mapstructure:"TOKEN_RETENTION"`

	KafkaBrokers  []string `mapstructure:"-"`
	KafkaTopic    string   `mapstructure:"KAFKA_TOPIC"`
	KafkaUsername string   `mapstructure:"KAFKA_USERNAME"`
	KafkaPassword string   `mapstructure:"KAFKA_PASSWORD"`
}

var keys = []string{
	"PORT", "ENV", "APP_NAME", "LOG_LEVEL", "LOG_FORMAT",
	"DB_DSN", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_RETRY_ATTEMPTS", "DB_RETRY_BACKOFF",
	"AUTH_MODE", "AUTH_JWT_SECRET", "AUTH_JWT_ISSUER", "AUTH_JWT_AUDIENCE",
	"IAM_BASE_URL", "IAM_API_KEY", "IAM_TIMEOUT",
	"QR_TOKEN_TTL", "CONSENT_MAX_DURATION", "TOKEN_CLEANUP_INTERVAL", "TOKEN_RETENTION",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_USERNAME", "KAFKA_PASSWORD",
}

// Load lee .env (si existe, salvo en producción) y luego el entorno.
func Load() (*Config, error) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("ENV")), "production") {
		// .env es opcional
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_NAME", "clinical-consent")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_RETRY_ATTEMPTS", 3)
	v.SetDefault("DB_RETRY_BACKOFF", "50ms")
	v.SetDefault("AUTH_MODE", "") // "" -> se infiere de ENV
	v.SetDefault("IAM_TIMEOUT", "5s")
	v.SetDefault("QR_TOKEN_TTL", "5m")
	v.SetDefault("CONSENT_MAX_DURATION", "168h")
	v.SetDefault("TOKEN_CLEANUP_INTERVAL", "10m")
	v.SetDefault("TOKEN_RETENTION", "24h")
	v.SetDefault("KAFKA_TOPIC", "consent-events")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ResolvedAuthMode: AUTH_MODE explícito gana; si no, dev fuera de producción y jwt en producción.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsProduction() {
		return AuthModeJWT
	}
	return AuthModeDev
}

func (c *Config) Addr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

func (c *Config) Validate() error {
	var errs []error

	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDev:
		if c.IsProduction() {
			errs = append(errs, errors.New("AUTH_MODE=dev is not allowed when ENV=production"))
		}
	case AuthModeJWT:
		if strings.TrimSpace(c.AuthJWTSecret) == "" {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required when AUTH_MODE=jwt"))
		}
	case AuthModeIAM:
		if strings.TrimSpace(c.IAMBaseURL) == "" || strings.TrimSpace(c.IAMAPIKey) == "" {
			errs = append(errs, errors.New("IAM_BASE_URL and IAM_API_KEY are required when AUTH_MODE=iam"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q, %q or %q, got %q", AuthModeDev, AuthModeJWT, AuthModeIAM, mode))
	}

	if c.QRTokenTTL <= 0 {
		errs = append(errs, errors.New("QR_TOKEN_TTL must be positive"))
	} else if c.QRTokenTTL > maxTokenTTL {
		errs = append(errs, fmt.Errorf("QR_TOKEN_TTL must be at most %s, got %s", maxTokenTTL, c.QRTokenTTL))
	}
	if c.ConsentMaxDuration <= 0 {
		errs = append(errs, errors.New("CONSENT_MAX_DURATION must be positive"))
	}
	if c.TokenCleanupInterval <= 0 {
		errs = append(errs, errors.New("TOKEN_CLEANUP_INTERVAL must be positive"))
	}
	// 0 = purgar apenas vencen
	if c.TokenRetention < 0 {
		errs = append(errs, errors.New("TOKEN_RETENTION must not be negative"))
	}
	if c.DBRetryAttempts < 1 {
		errs = append(errs, errors.New("DB_RETRY_ATTEMPTS must be at least 1"))
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
