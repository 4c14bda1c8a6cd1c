package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the chat server.
type Config struct {
	HTTPPort      string
	JWTSecret     []byte
	EncryptionKey string // base64-encoded AES key for provider API keys at rest
	LogLevel      string
	Local         bool

	Session       SessionConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Provider      ProviderConfig
	Chat          ChatConfig
	RequestLogger RequestLoggerConfig
	AuditSink     AuditSinkConfig
}

// SessionConfig holds session token settings
type SessionConfig struct {
	MaxAge         time.Duration
	CookieName     string
	CookieSecure   bool
	RevocationSize int // capacity of the in-process revocation cache
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // "postgres" or "sqlite3"
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// RedisConfig holds Redis connection settings. An empty Address disables Redis.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Enabled reports whether a Redis address was configured
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	RequestTimeout time.Duration // Timeout for a single upstream call
	OpenAIBaseURL  string
	CohereBaseURL  string
}

// ChatConfig holds dispatch settings
type ChatConfig struct {
	HistoryLimit     int // turns handed to the provider
	MessageListLimit int // turns returned by the message list endpoint
	SystemPrompt     string
}

type RequestLoggerConfig struct {
	Enabled          bool
	FilePathTemplate string
	MaxSize          int64
	MaxFiles         int
	BufferSize       int
	FlushInterval    time.Duration
}

// AuditSinkConfig holds configuration for the S3-based dispatch audit sink
type AuditSinkConfig struct {
	Enabled       bool          // Whether to ship audit records to S3
	BufferSize    int           // In-memory queue size
	FlushSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string // Prefix for S3 keys (e.g., "audit/")
	S3Endpoint    string // Optional custom endpoint (MinIO)
	S3AccessKey   string // Optional static credentials; the default AWS chain is used when empty
	S3SecretKey   string
	PodName       string // Pod identifier for multi-pod deployments
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	DefaultSystemPrompt = "You are a helpful assistant. Provide concise and accurate responses."
)

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	local := getEnvBool("LOCAL", false)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if !local {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		jwtSecret = "local-development-secret"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	driver := getEnvString("DATABASE_DRIVER", DriverPostgres)
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (generate one with `chatctl genkey`)")
	}

	cfg := &Config{
		HTTPPort:      getEnvString("HTTP_PORT", "8080"),
		JWTSecret:     []byte(jwtSecret),
		EncryptionKey: encryptionKey,
		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		Local:         local,
		Session: SessionConfig{
			MaxAge:         getEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour),
			CookieName:     getEnvString("SESSION_COOKIE_NAME", "session_token"),
			CookieSecure:   getEnvBool("SESSION_COOKIE_SECURE", !local),
			RevocationSize: getEnvInt("SESSION_REVOCATION_CACHE_SIZE", 10000),
		},
		Database: DatabaseConfig{
			Driver:          driver,
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
			OpenAIBaseURL:  getEnvString("OPENAI_BASE_URL", ""),
			CohereBaseURL:  getEnvString("COHERE_BASE_URL", ""),
		},
		Chat: ChatConfig{
			HistoryLimit:     getEnvInt("CHAT_HISTORY_LIMIT", 10),
			MessageListLimit: getEnvInt("CHAT_MESSAGE_LIST_LIMIT", 50),
			SystemPrompt:     getEnvString("CHAT_SYSTEM_PROMPT", DefaultSystemPrompt),
		},
		RequestLogger: RequestLoggerConfig{
			Enabled:          getEnvBool("REQUEST_LOGGER_ENABLED", true),
			FilePathTemplate: getEnvString("REQUEST_LOGGER_FILE_PATH_TEMPLATE", "/var/log/chatbot/requests-%s.jsonl"),
			MaxSize:          getEnvInt64("REQUEST_LOGGER_MAX_SIZE", 10_485_760),              // default 10 MB
			MaxFiles:         getEnvInt("REQUEST_LOGGER_MAX_FILES", 5),                        // default 5
			BufferSize:       getEnvInt("REQUEST_LOGGER_BUFFER_SIZE", 100),                    // default 100
			FlushInterval:    getEnvDuration("REQUEST_LOGGER_FLUSH_INTERVAL", 60*time.Second), // default 60 seconds
		},
		AuditSink: AuditSinkConfig{
			Enabled:       getEnvBool("AUDIT_SINK_ENABLED", false),
			BufferSize:    getEnvInt("AUDIT_SINK_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("AUDIT_SINK_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("AUDIT_SINK_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("AUDIT_SINK_S3_BUCKET", ""),
			S3Region:      getEnvString("AUDIT_SINK_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("AUDIT_SINK_S3_PREFIX", "audit/"),
			S3Endpoint:    getEnvString("AUDIT_SINK_S3_ENDPOINT", ""),
			S3AccessKey:   getEnvString("AUDIT_SINK_S3_ACCESS_KEY", ""),
			S3SecretKey:   getEnvString("AUDIT_SINK_S3_SECRET_KEY", ""),
			PodName:       getEnvString("POD_NAME", "chatserver-0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values Load cannot default sensibly.
func (c *Config) Validate() error {
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive, got %d", c.Chat.HistoryLimit)
	}
	if c.Chat.MessageListLimit <= 0 {
		return fmt.Errorf("CHAT_MESSAGE_LIST_LIMIT must be positive, got %d", c.Chat.MessageListLimit)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive")
	}
	if c.AuditSink.Enabled && c.AuditSink.S3Bucket == "" {
		return fmt.Errorf("AUDIT_SINK_S3_BUCKET is required when AUDIT_SINK_ENABLED is set")
	}
	return nil
}
