package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultSessionSecret = "your-secret-key-change-in-production"

// Config is the portal configuration. Every field is settable through an
// environment variable named after its path, e.g. redis.pool_size is REDIS_POOL_SIZE.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"` // session audit store
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Google    GoogleConfig    `mapstructure:"google"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Redirect  RedirectConfig  `mapstructure:"redirect"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	OTel      OTelConfig      `mapstructure:"otel"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// KafkaConfig holds Kafka/Redpanda settings for auth events
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
	Topic    string   `mapstructure:"topic"`
}

// JWTConfig holds settings for the signed session cookie
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	CookieName string        `mapstructure:"cookie_name"`
	SecureOnly bool          `mapstructure:"secure_only"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	UserInfoURL  string `mapstructure:"userinfo_url"`
}

// BackendConfig holds the rental backend base URL and per-call bounds
type BackendConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	IdentityTimeout time.Duration `mapstructure:"identity_timeout"`
	WhoAmITimeout   time.Duration `mapstructure:"whoami_timeout"`
	SwitchTimeout   time.Duration `mapstructure:"switch_timeout"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
}

type RedirectConfig struct {
	NavigationDelay time.Duration `mapstructure:"navigation_delay"`
	MarkerTTL       time.Duration `mapstructure:"marker_ttl"`
	SwitchLockTTL   time.Duration `mapstructure:"switch_lock_ttl"`
}

// RateLimitConfig bounds sign-in and role switch attempts per client
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

type OTelConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	CollectorAddr  string        `mapstructure:"collector_addr"`
	SampleRatio    float64       `mapstructure:"sample_ratio"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// Load reads ./.env when present. Environment variables take precedence.
func Load() (*Config, error) {
	v := newViper()
	// a missing .env is fine
	_ = mergeEnvFile(v, ".env")
	return decode(v)
}

// LoadWithPath is Load with an explicit env file that must exist
func LoadWithPath(path string) (*Config, error) {
	v := newViper()
	if err := mergeEnvFile(v, path); err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// mergeEnvFile layers a KEY=value file under the environment. File keys are
// flat (REDIS_HOST) so each known nested key is looked up by its env name.
func mergeEnvFile(v *viper.Viper, path string) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	layer := make(map[string]any)
	for _, key := range v.AllKeys() {
		if flat := strings.ReplaceAll(key, ".", "_"); file.IsSet(flat) {
			setPath(layer, strings.Split(key, "."), file.Get(flat))
		}
	}
	return v.MergeConfigMap(layer)
}

func setPath(m map[string]any, path []string, val any) {
	for _, p := range path[:len(path)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[p] = child
		}
		m = child
	}
	m[path[len(path)-1]] = val
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Server.AllowOrigins = trimList(cfg.Server.AllowOrigins)
	cfg.Kafka.Brokers = trimList(cfg.Kafka.Brokers)
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"app.name":        "forems-portal",
		"app.environment": "development",
		"app.version":     "1.0.0",

		"server.host":          "0.0.0.0",
		"server.port":          3000,
		"server.read_timeout":  "5s",
		"server.write_timeout": "30s",
		"server.idle_timeout":  "120s",
		"server.allow_origins": []string{"http://localhost:3000"},

		"database.host":               "localhost",
		"database.port":               5432,
		"database.user":               "postgres",
		"database.password":           "postgres",
		"database.dbname":             "portal_db",
		"database.sslmode":            "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "30m",
		"database.conn_max_idle_time": "5m",

		"redis.host":           "localhost",
		"redis.port":           6379,
		"redis.password":       "",
		"redis.db":             0,
		"redis.pool_size":      20,
		"redis.min_idle_conns": 2,
		"redis.dial_timeout":   "5s",
		"redis.read_timeout":   "1s",
		"redis.write_timeout":  "1s",

		"kafka.enabled":   false,
		"kafka.brokers":   []string{"localhost:9092"},
		"kafka.client_id": "forems-portal",
		"kafka.topic":     "auth.events",

		"jwt.secret":      defaultSessionSecret,
		"jwt.session_ttl": "720h",
		"jwt.issuer":      "forems-portal",
		"jwt.cookie_name": "portal_session",
		"jwt.secure_only": false,

		"google.client_id":     "",
		"google.client_secret": "",
		"google.redirect_url":  "http://localhost:3000/auth/google/callback",
		"google.userinfo_url":  "https://openidconnect.googleapis.com/v1/userinfo",

		"backend.base_url":         "http://localhost:5000",
		"backend.identity_timeout": "10s",
		"backend.whoami_timeout":   "5s",
		"backend.switch_timeout":   "10s",
		"backend.default_timeout":  "10s",

		"redirect.navigation_delay": "1500ms",
		"redirect.marker_ttl":       "2m",
		"redirect.switch_lock_ttl":  "15s",

		"rate_limit.enabled": true,
		"rate_limit.rps":     0.5,
		"rate_limit.burst":   10,

		"otel.enabled":         false,
		"otel.service_name":    "forems-portal",
		"otel.collector_addr":  "localhost:4317",
		"otel.sample_ratio":    1.0,
		"otel.metric_interval": "15s",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks settings the portal cannot start without
func (c *Config) Validate() error {
	switch {
	case c.App.Name == "":
		return fmt.Errorf("APP_NAME is required")
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	case c.JWT.Secret == "":
		return fmt.Errorf("JWT_SECRET is required")
	case c.IsProduction() && c.JWT.Secret == defaultSessionSecret:
		return fmt.Errorf("JWT_SECRET must be changed in production")
	case c.Backend.BaseURL == "":
		return fmt.Errorf("BACKEND_BASE_URL is required")
	case c.Kafka.Enabled && len(c.Kafka.Brokers) == 0:
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	case c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0):
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// ValidateGoogle reports a missing OAuth client. Sign-in is unavailable without one.
func (c *Config) ValidateGoogle() error {
	if c.Google.ClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if c.Google.ClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
