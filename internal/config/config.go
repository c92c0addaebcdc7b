// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger backends for the verification and OTP ledgers.
const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" or "console".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWTSecretKey is the HS256 signing secret. Ignored when a key pair is configured.
	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTTTL is the bearer token lifetime (e.g. "8h").
	JWTTTL string `mapstructure:"JWT_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// VerificationTokenTTL is how long an email verification / reset token stays live (e.g. "10m").
	VerificationTokenTTL string `mapstructure:"VERIFICATION_TOKEN_TTL"`
	// OTPTTL is how long a phone OTP stays live (e.g. "2m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// LedgerBackend selects the store for both ledgers: "postgres" or "redis".
	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	// RedisURL is the redis URL used when LedgerBackend is "redis".
	RedisURL string `mapstructure:"REDIS_URL"`
	// LedgerRetention is how long redis keeps a ledger row after it expires (e.g. "24h").
	LedgerRetention string `mapstructure:"LEDGER_RETENTION"`

	// FrontendURL is the base URL embedded in verification/reset links and the CORS origin.
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	// EmailFrom is the SES sender address. Empty selects the log-only dispatcher.
	EmailFrom string `mapstructure:"EMAIL_FROM"`
	// AWSRegion is the SES region.
	AWSRegion string `mapstructure:"AWS_REGION"`

	// SMSLocalAPIKey is the API key for SMS Local. Empty disables SMS dispatch.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// OTPReturnToClient when true enables dev OTP mode: the code is echoed in responses and served on GET /dev/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// LinkedInTokenURL is the LinkedIn OAuth token endpoint.
	LinkedInTokenURL string `mapstructure:"LINKEDIN_TOKEN_URL"`
	// LinkedInEmailURL is the LinkedIn primary email endpoint.
	LinkedInEmailURL string `mapstructure:"LINKEDIN_EMAIL_URL"`
	// FederationHTTPTimeout bounds each outbound federation request (e.g. "5s").
	FederationHTTPTimeout string `mapstructure:"FEDERATION_HTTP_TIMEOUT"`

	// RolePolicyFile is an optional Rego file that replaces the embedded role policy.
	RolePolicyFile string `mapstructure:"ROLE_POLICY_FILE"`

	// KafkaBrokers is a comma-separated list of Kafka brokers for the auth event stream; empty disables it.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events.
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group of cmd/worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("GRPC_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "identity-service")
	v.SetDefault("JWT_AUDIENCE", "identity-api")
	v.SetDefault("JWT_TTL", "8h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("VERIFICATION_TOKEN_TTL", "10m")
	v.SetDefault("OTP_TTL", "2m")
	v.SetDefault("LEDGER_BACKEND", LedgerBackendPostgres)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LEDGER_RETENTION", "24h")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("LINKEDIN_TOKEN_URL", "https://www.linkedin.com/oauth/v2/accessToken")
	v.SetDefault("LINKEDIN_EMAIL_URL", "https://api.linkedin.com/v2/emailAddress?q=members&projection=(elements*(handle~))")
	v.SetDefault("FEDERATION_HTTP_TIMEOUT", "5s")
	v.SetDefault("ROLE_POLICY_FILE", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_TOPIC", "identity-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "identity-auth-events-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	cfg.LedgerBackend = strings.ToLower(strings.TrimSpace(cfg.LedgerBackend))
	switch cfg.LedgerBackend {
	case LedgerBackendPostgres:
	case LedgerBackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when LEDGER_BACKEND=redis")
		}
	default:
		return nil, errors.New("config: LEDGER_BACKEND must be postgres or redis")
	}

	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}

	return &cfg, nil
}

// HasKeyPair reports whether asymmetric JWT signing is configured.
func (c *Config) HasKeyPair() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

// TokenTTL parses JWTTTL as a time.Duration. Returns 8h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.JWTTTL, 8*time.Hour)
}

// VerificationTTL parses VerificationTokenTTL. Returns 10m if unset or invalid.
func (c *Config) VerificationTTL() time.Duration {
	return parseDuration(c.VerificationTokenTTL, 10*time.Minute)
}

// OTPLifetime parses OTPTTL. Returns 2m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	return parseDuration(c.OTPTTL, 2*time.Minute)
}

// RedisRetention parses LedgerRetention. Returns 24h if unset or invalid.
func (c *Config) RedisRetention() time.Duration {
	return parseDuration(c.LedgerRetention, 24*time.Hour)
}

// FederationTimeout parses FederationHTTPTimeout. Returns 5s if unset or invalid.
func (c *Config) FederationTimeout() time.Duration {
	return parseDuration(c.FederationHTTPTimeout, 5*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the auth event stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
