package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "GOSHOPPER"

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	GRPC         GRPCSettings         `mapstructure:"grpc"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	Lockout      LockoutSettings      `mapstructure:"lockout"`
	Registration RegistrationSettings `mapstructure:"registration"`
	OTP          OTPSettings          `mapstructure:"otp"`
	SMS          SMSSettings          `mapstructure:"sms"`
	Mail         MailSettings         `mapstructure:"mail"`
	Payment      PaymentSettings      `mapstructure:"payment"`
	Numbering    NumberingSettings    `mapstructure:"numbering"`
	I18n         I18nSettings         `mapstructure:"i18n"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// LockoutStore and DraftStore select "redis" (shared) or "memory" (single instance).
	LockoutStore string `mapstructure:"lockout_store"`
	DraftStore   string `mapstructure:"draft_store"`
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS and key namespaces
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	LockoutPrefix   string `mapstructure:"lockout_prefix"`
	DraftPrefix     string `mapstructure:"draft_prefix"`
	OTPPrefix       string `mapstructure:"otp_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the event producer and the payment status consumer
type KafkaSettings struct {
	Brokers            []string `mapstructure:"brokers"`
	TopicPrefix        string   `mapstructure:"topic_prefix"`
	Async              bool     `mapstructure:"async"`
	ConsumerGroup      string   `mapstructure:"consumer_group"`
	PaymentStatusTopic string   `mapstructure:"payment_status_topic"`
}

// RateLimitSettings configures per-IP sliding windows for public endpoints
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	PhoneCheckMaxAttempts    int           `mapstructure:"phone_check_max_attempts"`
	OTPMaxAttempts           int           `mapstructure:"otp_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	Issuer               string        `mapstructure:"issuer"`
	KeyDirectory         string        `mapstructure:"key_directory"`
	KeyID                string        `mapstructure:"key_id"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	VerificationTokenTTL time.Duration `mapstructure:"verification_token_ttl"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// LockoutSettings configures the login throttling tracker
type LockoutSettings struct {
	WarnThreshold   int           `mapstructure:"warn_threshold"`
	LockThreshold   int           `mapstructure:"lock_threshold"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
	FailureWindow   time.Duration `mapstructure:"failure_window"`
	DelayAfter      int           `mapstructure:"delay_after"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
}

// RegistrationSettings configures the registration draft session
type RegistrationSettings struct {
	DraftTTL          time.Duration `mapstructure:"draft_ttl"`
	ResendCooldown    time.Duration `mapstructure:"resend_cooldown"`
	DefaultCountryISO string        `mapstructure:"default_country_iso"`
}

type OTPSettings struct {
	Length          int           `mapstructure:"length"`
	TTL             time.Duration `mapstructure:"ttl"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	MessageTemplate string        `mapstructure:"message_template"`
}

// SMSSettings configures the SMS gateway; an empty base URL logs messages instead
type SMSSettings struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	SenderID string        `mapstructure:"sender_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MailSettings configures the transactional mail API; an empty base URL logs instead
type MailSettings struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	From          string        `mapstructure:"from"`
	ResetURL      string        `mapstructure:"reset_url"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type PaymentSettings struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	DefaultCurrency     string        `mapstructure:"default_currency"`
	SupportedCurrencies []string      `mapstructure:"supported_currencies"`
	WebhookSecret       string        `mapstructure:"webhook_secret"`
}

// NumberingSettings points at an optional numbering plan override file
type NumberingSettings struct {
	PlanFile string `mapstructure:"plan_file"`
}

type I18nSettings struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"app.lockout_store",
		"app.draft_store",
		"grpc.host",
		"grpc.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.lockout_prefix",
		"redis.draft_prefix",
		"redis.otp_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"kafka.consumer_group",
		"kafka.payment_status_topic",
		"jwt.issuer",
		"jwt.key_directory",
		"jwt.key_id",
		"jwt.access_token_ttl",
		"jwt.verification_token_ttl",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.phone_check_max_attempts",
		"rate_limit.otp_max_attempts",
		"rate_limit.password_reset_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"lockout.warn_threshold",
		"lockout.lock_threshold",
		"lockout.lockout_duration",
		"lockout.failure_window",
		"lockout.delay_after",
		"lockout.base_delay",
		"lockout.max_delay",
		"registration.draft_ttl",
		"registration.resend_cooldown",
		"registration.default_country_iso",
		"otp.length",
		"otp.ttl",
		"otp.max_attempts",
		"otp.message_template",
		"sms.base_url",
		"sms.api_key",
		"sms.sender_id",
		"sms.timeout",
		"mail.base_url",
		"mail.api_key",
		"mail.from",
		"mail.reset_url",
		"mail.reset_token_ttl",
		"mail.timeout",
		"payment.base_url",
		"payment.api_key",
		"payment.timeout",
		"payment.default_currency",
		"payment.supported_currencies",
		"payment.webhook_secret",
		"numbering.plan_file",
		"i18n.default_language",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *AppConfig) Validate() error {
	if c.Lockout.LockThreshold <= 0 {
		return fmt.Errorf("config: lockout.lock_threshold must be positive")
	}
	if c.Lockout.WarnThreshold > c.Lockout.LockThreshold {
		return fmt.Errorf("config: lockout.warn_threshold must not exceed lockout.lock_threshold")
	}
	if c.Lockout.LockoutDuration <= 0 {
		return fmt.Errorf("config: lockout.lockout_duration must be positive")
	}
	if c.OTP.Length != 6 {
		return fmt.Errorf("config: otp.length must be 6")
	}
	if c.Registration.DraftTTL <= 0 {
		return fmt.Errorf("config: registration.draft_ttl must be positive")
	}
	if err := validStore("app.lockout_store", c.App.LockoutStore); err != nil {
		return err
	}
	return validStore("app.draft_store", c.App.DraftStore)
}

func validStore(key, value string) error {
	switch value {
	case "redis", "memory":
		return nil
	}
	return fmt.Errorf("config: %s must be redis or memory, got %q", key, value)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goshopper-account")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("app.lockout_store", "redis")
	v.SetDefault("app.draft_store", "redis")

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "goshopper")
	v.SetDefault("postgres.password", "goshopper_password")
	v.SetDefault("postgres.database", "goshopper")
	v.SetDefault("postgres.schema", "account")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.lockout_prefix", "goshopper:lockout")
	v.SetDefault("redis.draft_prefix", "goshopper:draft")
	v.SetDefault("redis.otp_prefix", "goshopper:otp")
	v.SetDefault("redis.rate_limit_prefix", "goshopper:rate-limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "goshopper")
	v.SetDefault("kafka.async", true)
	v.SetDefault("kafka.consumer_group", "goshopper-account")
	v.SetDefault("kafka.payment_status_topic", "payments.status")

	v.SetDefault("jwt.issuer", "goshopper-account")
	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.key_id", "v1")
	v.SetDefault("jwt.access_token_ttl", "1h")
	v.SetDefault("jwt.verification_token_ttl", "30m")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "goshopper-account")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 20)
	v.SetDefault("rate_limit.register_max_attempts", 10)
	v.SetDefault("rate_limit.phone_check_max_attempts", 60)
	v.SetDefault("rate_limit.otp_max_attempts", 5)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("lockout.warn_threshold", 3)
	v.SetDefault("lockout.lock_threshold", 5)
	v.SetDefault("lockout.lockout_duration", "15m")
	v.SetDefault("lockout.failure_window", "30m")
	v.SetDefault("lockout.delay_after", 2)
	v.SetDefault("lockout.base_delay", "2s")
	v.SetDefault("lockout.max_delay", "30s")

	v.SetDefault("registration.draft_ttl", "30m")
	v.SetDefault("registration.resend_cooldown", "60s")
	v.SetDefault("registration.default_country_iso", "CD")

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.ttl", "5m")
	v.SetDefault("otp.max_attempts", 5)
	v.SetDefault("otp.message_template", "Votre code GoShopper: %s")

	v.SetDefault("sms.base_url", "")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.sender_id", "GoShopper")
	v.SetDefault("sms.timeout", "10s")

	v.SetDefault("mail.base_url", "")
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.from", "no-reply@goshopper.app")
	v.SetDefault("mail.reset_url", "https://goshopper.app/reset-password")
	v.SetDefault("mail.reset_token_ttl", "1h")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("payment.base_url", "http://localhost:8090")
	v.SetDefault("payment.api_key", "")
	v.SetDefault("payment.timeout", "15s")
	v.SetDefault("payment.default_currency", "USD")
	v.SetDefault("payment.supported_currencies", []string{"USD", "CDF"})
	v.SetDefault("payment.webhook_secret", "")

	v.SetDefault("numbering.plan_file", "")

	v.SetDefault("i18n.default_language", "fr")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
