package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	S3         S3Config
	Vitals     VitalsConfig
	Security   SecurityConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

type CloudWatchConfig struct {
	MetricsEnabled    bool
	LogsEnabled       bool
	Region            string
	Endpoint          string
	AccessKeyID       string
	SecretAccessKey   string
	Namespace         string
	Environment       string
	LogGroupName      string
	LogStreamName     string
	BufferSize        int
	FlushInterval     time.Duration
	StorageResolution int32
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type VitalsConfig struct {
	HistoryMaxDuration time.Duration
	RetentionDays      int
	RetentionInterval  time.Duration
	MaxBufferedEntries int
}

type SecurityConfig struct {
	AllowedOrigins    []string
	AuthEnabled       bool
	AuthToken         string
	IngestRateLimit   float64
	IngestRateBurst   int
	MaxIngestBodySize int64
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var errs []string
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return d
	}
	integer := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return v
	}

	rps, err := strconv.ParseFloat(getEnv("INGEST_RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INGEST_RATE_LIMIT_RPS: %v", err))
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("POSTGRES_ENABLED", true),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "vitals"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           integer("REDIS_DB", 0),
			TTL:          duration("REDIS_TTL", "1m"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "vitals"),
		},
		CloudWatch: CloudWatchConfig{
			MetricsEnabled:    getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			LogsEnabled:       getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			Region:            getEnv("CLOUDWATCH_REGION", getEnv("AWS_REGION", "us-east-1")),
			Endpoint:          getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:       getEnv("CLOUDWATCH_ACCESS_KEY_ID", ""),
			SecretAccessKey:   getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", ""),
			Namespace:         getEnv("CLOUDWATCH_NAMESPACE", "VitalsBridge/WebVitals"),
			Environment:       getEnv("CLOUDWATCH_ENVIRONMENT", "development"),
			LogGroupName:      getEnv("CLOUDWATCH_LOG_GROUP", "/vitals-bridge/host"),
			LogStreamName:     getEnv("CLOUDWATCH_LOG_STREAM", hostname),
			BufferSize:        integer("CLOUDWATCH_BUFFER_SIZE", 100),
			FlushInterval:     duration("CLOUDWATCH_FLUSH_INTERVAL", "10s"),
			StorageResolution: int32(integer("CLOUDWATCH_STORAGE_RESOLUTION", 60)),
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "ru-central1"),
			Endpoint:        getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "envelopes"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    duration("S3_PRESIGNED_TTL", "5m"),
		},
		Vitals: VitalsConfig{
			HistoryMaxDuration: duration("VITALS_HISTORY_MAX_DURATION", "168h"),
			RetentionDays:      integer("VITALS_RETENTION_DAYS", 30),
			RetentionInterval:  duration("VITALS_RETENTION_INTERVAL", "1h"),
			MaxBufferedEntries: integer("VITALS_MAX_BUFFERED_ENTRIES", 150),
		},
		Security: SecurityConfig{
			AllowedOrigins:    splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:       getEnvBool("AUTH_ENABLED", false),
			AuthToken:         getEnv("AUTH_BEARER_TOKEN", ""),
			IngestRateLimit:   rps,
			IngestRateBurst:   integer("INGEST_RATE_LIMIT_BURST", 40),
			MaxIngestBodySize: int64(integer("INGEST_MAX_BODY_KB", 256)) * 1024,
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность включенных компонентов
func (c *Config) Validate() error {
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if c.S3.Enabled && strings.TrimSpace(c.S3.Bucket) == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}
	if c.Vitals.HistoryMaxDuration <= 0 {
		return fmt.Errorf("VITALS_HISTORY_MAX_DURATION must be positive")
	}
	if c.Security.IngestRateLimit <= 0 || c.Security.IngestRateBurst <= 0 {
		return fmt.Errorf("INGEST_RATE_LIMIT_RPS and INGEST_RATE_LIMIT_BURST must be positive")
	}
	if c.CloudWatch.LogsEnabled && c.CloudWatch.LogStreamName == "" {
		return fmt.Errorf("CLOUDWATCH_LOG_STREAM is required when CLOUDWATCH_LOGS_ENABLED=true")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
