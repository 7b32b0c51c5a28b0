package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AI        AIConfig        `mapstructure:"ai"`
	Board     BoardConfig     `mapstructure:"board"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Security  SecurityConfig  `mapstructure:"security"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StoreConfig selects the remote store backend
type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	Name                 string        `mapstructure:"name"`
	User                 string        `mapstructure:"user"`
	Password             string        `mapstructure:"password"`
	SSLMode              string        `mapstructure:"ssl_mode"`
	MaxOpenConns         int           `mapstructure:"max_open_conns"`
	MaxIdleConns         int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime      time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime      time.Duration `mapstructure:"conn_max_idle_time"`
	ListenerMinReconnect time.Duration `mapstructure:"listener_min_reconnect"`
	ListenerMaxReconnect time.Duration `mapstructure:"listener_max_reconnect"`
	MigrationsPath       string        `mapstructure:"migrations_path"`
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI              string        `mapstructure:"uri"`
	Database         string        `mapstructure:"database"`
	StreamRetryDelay time.Duration `mapstructure:"stream_retry_delay"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AIConfig holds generative model configuration
type AIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Temperature       float32       `mapstructure:"temperature"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// BoardConfig holds sticky board geometry
type BoardConfig struct {
	Height      float64 `mapstructure:"height"`
	ConvertZone float64 `mapstructure:"convert_zone"`
	MinWidth    float64 `mapstructure:"min_width"`
	MinHeight   float64 `mapstructure:"min_height"`
}

// WorkspaceConfig holds per-user state configuration
type WorkspaceConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// PlannerConfig holds weekly planner configuration
type PlannerConfig struct {
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
}

// IdentityConfig holds device-local identity storage configuration
type IdentityConfig struct {
	File string `mapstructure:"file"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	ExpiresIn time.Duration `mapstructure:"expires_in"`
	Issuer    string        `mapstructure:"issuer"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const defaultJWTSecret = "change-me-companion-secret"

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Ophion Companion")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")

	// Store defaults
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.connect_timeout", "10s")
	v.SetDefault("store.write_timeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "companion")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "30s")
	v.SetDefault("database.listener_min_reconnect", "1s")
	v.SetDefault("database.listener_max_reconnect", "1m")
	v.SetDefault("database.migrations_path", "file://migrations")

	// Mongo defaults
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "companion")
	v.SetDefault("mongo.stream_retry_delay", "5s")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// AI defaults
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.requests_per_second", 2)
	v.SetDefault("ai.burst", 4)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.cache_ttl", "15m")

	// Board defaults
	v.SetDefault("board.height", 800)
	v.SetDefault("board.convert_zone", 80)
	v.SetDefault("board.min_width", 200)
	v.SetDefault("board.min_height", 150)

	v.SetDefault("workspace.tick_interval", "1s")
	v.SetDefault("planner.reminder_interval", "1m")
	v.SetDefault("identity.file", defaultIdentityFile())

	// JWT defaults
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.expires_in", "720h")
	v.SetDefault("jwt.issuer", "ophion-companion")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "")

	// Security defaults
	v.SetDefault("security.cors_allowed_origins", "*")
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", "1m")

	v.SetDefault("metrics.enabled", true)
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "APP_NAME")
	v.BindEnv("app.version", "APP_VERSION")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("app.debug", "APP_DEBUG")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")

	// Store
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("store.connect_timeout", "STORE_CONNECT_TIMEOUT")
	v.BindEnv("store.write_timeout", "STORE_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.ssl_mode", "DB_SSL_MODE")
	v.BindEnv("database.migrations_path", "DB_MIGRATIONS_PATH")

	// Mongo
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.database", "MONGO_DATABASE")
	v.BindEnv("mongo.stream_retry_delay", "MONGO_STREAM_RETRY_DELAY")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// AI
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("ai.requests_per_second", "AI_REQUESTS_PER_SECOND")
	v.BindEnv("ai.cache_ttl", "AI_CACHE_TTL")

	// Board
	v.BindEnv("board.height", "BOARD_HEIGHT")
	v.BindEnv("board.convert_zone", "BOARD_CONVERT_ZONE")

	v.BindEnv("workspace.tick_interval", "WORKSPACE_TICK_INTERVAL")
	v.BindEnv("planner.reminder_interval", "PLANNER_REMINDER_INTERVAL")
	v.BindEnv("identity.file", "IDENTITY_FILE")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expires_in", "JWT_EXPIRES_IN")
	v.BindEnv("jwt.issuer", "JWT_ISSUER")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")
	v.BindEnv("logger.output", "LOG_OUTPUT")
	v.BindEnv("logger.filename", "LOG_FILENAME")

	// Security
	v.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	v.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	v.BindEnv("metrics.enabled", "ENABLE_METRICS")
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Driver {
	case StoreDriverPostgres:
		if cfg.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	case StoreDriverMongo:
		if cfg.Mongo.URI == "" {
			return fmt.Errorf("mongo uri is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.App.IsProduction() && (cfg.JWT.Secret == "" || cfg.JWT.Secret == defaultJWTSecret) {
		return fmt.Errorf("JWT secret must be set and should not use default value")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Board.Height <= 0 || cfg.Board.ConvertZone < 0 || cfg.Board.MinWidth <= 0 || cfg.Board.MinHeight <= 0 {
		return fmt.Errorf("board dimensions must be positive")
	}

	if cfg.Workspace.TickInterval <= 0 {
		return fmt.Errorf("workspace tick interval must be positive")
	}

	return nil
}

func defaultIdentityFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ophion", "identity.json")
	}
	return filepath.Join(home, ".ophion", "identity.json")
}

// GetDSN returns the database connection string
func (cfg *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetAddr returns the Redis address
func (cfg *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}

// Configured reports whether an API key is present
func (cfg *AIConfig) Configured() bool {
	return cfg.APIKey != ""
}
