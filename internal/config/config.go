package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cart     CartConfig     `mapstructure:"cart"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	AllowedOrigin      string        `mapstructure:"allowed_origin"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	DBName            string `mapstructure:"dbname"`
	MigrationsDirPath string `mapstructure:"migrations_dir"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	Topic           string        `mapstructure:"topic"`
	GroupID         string        `mapstructure:"group_id"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	OutboxRetention time.Duration `mapstructure:"outbox_retention"`
}

type StripeConfig struct {
	SecretKey  string        `mapstructure:"secret_key"`
	Currency   string        `mapstructure:"currency"`
	SuccessURL string        `mapstructure:"success_url"`
	CancelURL  string        `mapstructure:"cancel_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type TwilioConfig struct {
	AccountSID       string        `mapstructure:"account_sid"`
	AuthToken        string        `mapstructure:"auth_token"`
	VerifyServiceSID string        `mapstructure:"verify_service_sid"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	ResetTokenSecret   string        `mapstructure:"reset_token_secret"`
	ResetTokenTTL      time.Duration `mapstructure:"reset_token_ttl"`
	SupabaseURL        string        `mapstructure:"supabase_url"`
	SupabaseServiceKey string        `mapstructure:"supabase_service_key"`
	AdminTimeout       time.Duration `mapstructure:"admin_timeout"`
}

type CartConfig struct {
	// Backend is one of memory, file, redis, mongo.
	Backend string        `mapstructure:"backend"`
	FileDir string        `mapstructure:"file_dir"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type ScheduleConfig struct {
	TimeZone    string `mapstructure:"timezone"`
	HorizonDays int    `mapstructure:"horizon_days"`
}

type OTPConfig struct {
	RequestsPerHour int `mapstructure:"requests_per_hour"`
	Burst           int `mapstructure:"burst"`
	MaxAttempts     int `mapstructure:"max_attempts"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_request_body_size", 1<<20) // 1MB
	v.SetDefault("http.allowed_origin", "*")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "storefront")
	v.SetDefault("postgres.migrations_dir", "internal/repository/migrations")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 15*time.Minute)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "storefront")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "storefront-events")
	v.SetDefault("kafka.group_id", "storefront-cart")
	v.SetDefault("kafka.poll_interval", 500*time.Millisecond)
	v.SetDefault("kafka.outbox_retention", 24*time.Hour)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.currency", "cad")
	v.SetDefault("stripe.success_url", "http://localhost:5173/checkout/success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("stripe.cancel_url", "http://localhost:5173/checkout/cancel")
	v.SetDefault("stripe.timeout", 10*time.Second)

	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.verify_service_sid", "")
	v.SetDefault("twilio.timeout", 10*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.reset_token_secret", "")
	v.SetDefault("auth.reset_token_ttl", 15*time.Minute)
	v.SetDefault("auth.supabase_url", "")
	v.SetDefault("auth.supabase_service_key", "")
	v.SetDefault("auth.admin_timeout", 10*time.Second)

	v.SetDefault("cart.backend", "redis")
	v.SetDefault("cart.file_dir", "data/carts")
	v.SetDefault("cart.ttl", 30*24*time.Hour)

	v.SetDefault("schedule.timezone", "America/Toronto")
	v.SetDefault("schedule.horizon_days", 180)

	v.SetDefault("otp.requests_per_hour", 5)
	v.SetDefault("otp.burst", 3)
	v.SetDefault("otp.max_attempts", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads defaults, then the optional config file, then STOREFRONT_* environment
// variables (STOREFRONT_STRIPE_SECRET_KEY overrides stripe.secret_key).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Cart.Backend {
	case "memory", "file", "redis", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unknown cart backend %q", c.Cart.Backend))
	}
	if c.Schedule.HorizonDays <= 0 {
		errs = append(errs, errors.New("schedule.horizon_days must be positive"))
	}
	if c.OTP.RequestsPerHour <= 0 || c.OTP.MaxAttempts <= 0 {
		errs = append(errs, errors.New("otp limits must be positive"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is empty"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.ResetTokenSecret == "" {
		errs = append(errs, errors.New("auth.reset_token_secret is required"))
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWTSecret == c.Auth.ResetTokenSecret {
		errs = append(errs, errors.New("auth.reset_token_secret must differ from auth.jwt_secret"))
	}
	if err := validateCurrency(c.Stripe.Currency); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Amounts are sent to the processor in hundredths, so only two-decimal currencies are accepted.
var nonCentCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

func validateCurrency(code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != 3 {
		return fmt.Errorf("stripe.currency %q is not an ISO 4217 code", code)
	}
	if nonCentCurrencies[code] {
		return fmt.Errorf("stripe.currency %q does not use two decimal places", code)
	}
	return nil
}

// Location resolves the delivery time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
