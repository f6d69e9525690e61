package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxUploadBytes is the fixed ceiling for a persisted asset (10 MiB).
const MaxUploadBytes int64 = 10 << 20

// Upload timeout bounds for the client transport.
const (
	MinUploadTimeout     = 60 * time.Second
	MaxUploadTimeout     = 120 * time.Second
	DefaultUploadTimeout = MinUploadTimeout
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverMinIO = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// The database only backs the optional audit trail; leave DB_HOST empty to run without it.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// Enabled reports whether a database host was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects and configures the asset storage backend.
type StorageConfig struct {
	Driver string
	// Dir is the serving directory for the local driver.
	Dir string
	// PublicBaseURL, when set, makes upload responses carry absolute URLs.
	PublicBaseURL string
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string
	Format string
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowOrigins string
}

// AppConfig is the centralized configuration struct for the server.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Storage  StorageConfig
	MinIO    MinIOConfig
	Database DatabaseConfig
	Log      LogConfig
	CORS     CORSConfig
}

// ClientConfig is consumed by the upload transport and the CLI.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads server configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:3001"),
		Port:    getEnv("PORT", "3001"),
		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverLocal)),
			Dir:           getEnv("STORAGE_DIR", "uploads"),
			PublicBaseURL: strings.TrimRight(getEnv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
	}
}

// LoadClient reads the client-side settings. The upload timeout is clamped to
// [MinUploadTimeout, MaxUploadTimeout]; unparsable values fall back to the default.
func LoadClient() *ClientConfig {
	return &ClientConfig{
		BaseURL: strings.TrimRight(getEnv("ASSET_API_BASE_URL", "http://localhost:3001"), "/"),
		Timeout: ClampUploadTimeout(time.Duration(getEnvInt("UPLOAD_TIMEOUT_SEC", 0)) * time.Second),
	}
}

// ClampUploadTimeout maps d into the supported timeout window. Zero or negative means default.
func ClampUploadTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultUploadTimeout
	case d < MinUploadTimeout:
		return MinUploadTimeout
	case d > MaxUploadTimeout:
		return MaxUploadTimeout
	default:
		return d
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
