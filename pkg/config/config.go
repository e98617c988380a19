package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backends understood by the key-value layer.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store         StoreConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Log           LogConfig
	AI            AIConfig
	SMTP          SMTPConfig
	Telegram      TelegramConfig
	Notifications NotificationsConfig
	Stats         StatsConfig
	Locks         LockConfig
	Departments   DepartmentsConfig
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthConfig holds the shared anonymous key and write-scope policy.
type AuthConfig struct {
	AnonKey                   string
	HODDepartmentScopedWrites bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AIConfig configures the Gemini classifier. An empty API key disables the primary path.
type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// SMTPConfig configures outbound email. Missing credentials switch to a log-only sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	Timeout  time.Duration
}

// TelegramConfig configures admin chat alerts for new grievances.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// NotificationsConfig tunes the notification worker pool.
type NotificationsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// StatsConfig governs caching of dashboard statistics.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// LockConfig bounds per-record lock hold and wait times.
type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

// DepartmentsConfig toggles seeding of the default departments.
type DepartmentsConfig struct {
	SeedDefaults bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{Backend: strings.ToLower(v.GetString("STORE_BACKEND"))}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Auth = AuthConfig{
		AnonKey:                   v.GetString("ANON_KEY"),
		HODDepartmentScopedWrites: v.GetBool("HOD_DEPARTMENT_SCOPED_WRITES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.AI = AIConfig{
		APIKey:  v.GetString("GEMINI_API_KEY"),
		Model:   v.GetString("GEMINI_MODEL"),
		BaseURL: strings.TrimRight(v.GetString("GEMINI_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("AI_TIMEOUT"), 15*time.Second),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		FromName: v.GetString("SMTP_FROM_NAME"),
		Timeout:  parseDuration(v.GetString("SMTP_TIMEOUT"), 10*time.Second),
	}

	cfg.Telegram = TelegramConfig{
		BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		ChatID:   v.GetInt64("TELEGRAM_CHAT_ID"),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		BufferSize: v.GetInt("NOTIFY_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), time.Minute),
	}

	cfg.Locks = LockConfig{
		TTL:  parseDuration(v.GetString("LOCK_TTL"), 10*time.Second),
		Wait: parseDuration(v.GetString("LOCK_WAIT"), 3*time.Second),
	}

	cfg.Departments = DepartmentsConfig{SeedDefaults: v.GetBool("SEED_DEFAULT_DEPARTMENTS")}

	return cfg, nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Store.Backend == StoreRedis || c.Stats.CacheEnabled
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_BACKEND", StoreMemory)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "grievances")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "griev:")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "grievance-api")

	v.SetDefault("ANON_KEY", "dev_anon_key")
	v.SetDefault("HOD_DEPARTMENT_SCOPED_WRITES", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-lite")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("AI_TIMEOUT", "15s")

	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM_NAME", "AI Grievance System")
	v.SetDefault("SMTP_TIMEOUT", "10s")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFY_MAX_RETRIES", 2)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_STATS_CACHE", false)
	v.SetDefault("STATS_CACHE_TTL", "1m")

	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("LOCK_WAIT", "3s")

	v.SetDefault("SEED_DEFAULT_DEPARTMENTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
