package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Storage  StorageConfig
	Detector DetectorConfig
	Pipeline PipelineConfig
	Worker   WorkerConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// QueueConfig holds task dispatch settings
type QueueConfig struct {
	Type   string // "redis" or "memory"
	Stream string
	Group  string
}

// StorageConfig holds MinIO object storage settings
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// DetectorConfig holds inference backend settings
type DetectorConfig struct {
	Name          string
	Endpoint      string
	DefaultParams map[string]any
	Timeout       time.Duration
}

// PipelineConfig holds step executor settings
type PipelineConfig struct {
	// GateRule is a CEL expression over the utility_gate input facts
	GateRule      string
	MaxDetections int
}

// WorkerConfig holds pipeline worker settings
type WorkerConfig struct {
	Concurrency int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "inspector"),
			User:        getEnv("POSTGRES_USER", "inspector"),
			Password:    getEnv("POSTGRES_PASSWORD", "inspector"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 5),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Type:   getEnv("QUEUE_TYPE", "redis"),
			Stream: getEnv("QUEUE_STREAM", "pipeline.run.requests"),
			Group:  getEnv("QUEUE_GROUP", "pipeline_workers"),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "inspector"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "inspectorminio"),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Bucket:    getEnv("MINIO_BUCKET", "photos"),
		},
		Detector: DetectorConfig{
			Name:     getEnv("DETECTOR_NAME", "yolo_onnx"),
			Endpoint: getEnv("DETECTOR_ENDPOINT", "http://localhost:8500"),
			DefaultParams: map[string]any{
				"conf":       getEnvFloat("DETECTOR_CONF", 0.25),
				"iou":        getEnvFloat("DETECTOR_IOU", 0.45),
				"input_size": getEnvInt("DETECTOR_INPUT_SIZE", 640),
			},
			Timeout: getEnvDuration("DETECTOR_TIMEOUT", 60*time.Second),
		},
		Pipeline: PipelineConfig{
			GateRule:      getEnv("GATE_RULE", "input.size_bytes > 0"),
			MaxDetections: getEnvInt("MAX_DETECTIONS", 200),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}
	if c.Queue.Type != "redis" && c.Queue.Type != "memory" {
		return fmt.Errorf("unknown queue type: %s", c.Queue.Type)
	}
	if strings.Contains(c.Storage.Endpoint, "://") {
		return fmt.Errorf("storage endpoint must not include scheme: %q", c.Storage.Endpoint)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be >= 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// DefaultDetectorParams returns a deep copy of the configured default
// detector params, safe for per-run mutation.
func (c *Config) DefaultDetectorParams() map[string]any {
	raw, _ := json.Marshal(c.Detector.DefaultParams)
	out := make(map[string]any)
	_ = json.Unmarshal(raw, &out)
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
