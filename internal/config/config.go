package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers understood by the object store factory.
const (
	StorageDriverMinIO      = "minio"
	StorageDriverCloudinary = "cloudinary"
	StorageDriverMemory     = "memory"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	JWTSecret              string
	StorageDriver          string
	StorageBucket          string
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinIORegion            string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	NATSURL                string
	NATSSubject            string
	ScoringMode            string
	EvaluationWorkers      int
	EvaluationTimeout      time.Duration
	EvaluationLockTTL      time.Duration
	StatsCacheTTL          time.Duration
	UploadMaxSizeMB        int
	EvaluationRateLimit    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RUBRIC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Rubric Coder Intel")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "sqlite:rubric.db")
	v.SetDefault("storage.driver", StorageDriverMinIO)
	v.SetDefault("storage.bucket", "submissions")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("cloudinary.folder", "rubric/submissions")
	v.SetDefault("nats.subject", "rubric.evaluations")
	v.SetDefault("scoring.mode", "presence")
	v.SetDefault("evaluation.workers", 4)
	v.SetDefault("evaluation.timeout", "30s")
	v.SetDefault("evaluation.lock_ttl", "1m")
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("rate_limit.evaluations", 30)

	evaluationTimeout, err := parseDuration(v, "evaluation.timeout", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	lockTTL, err := parseDuration(v, "evaluation.lock_ttl", time.Minute)
	if err != nil {
		return Config{}, err
	}

	statsTTL, err := parseDuration(v, "stats.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		StorageBucket:          v.GetString("storage.bucket"),
		MinIOEndpoint:          v.GetString("minio.endpoint"),
		MinIOAccessKey:         v.GetString("minio.access_key"),
		MinIOSecretKey:         v.GetString("minio.secret_key"),
		MinIOUseSSL:            v.GetBool("minio.use_ssl"),
		MinIORegion:            v.GetString("minio.region"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		ScoringMode:            strings.ToLower(v.GetString("scoring.mode")),
		EvaluationWorkers:      v.GetInt("evaluation.workers"),
		EvaluationTimeout:      evaluationTimeout,
		EvaluationLockTTL:      lockTTL,
		StatsCacheTTL:          statsTTL,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		EvaluationRateLimit:    v.GetInt("rate_limit.evaluations"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StorageDriver {
	case StorageDriverMinIO, StorageDriverCloudinary, StorageDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.ScoringMode {
	case "presence", "frequency":
	default:
		return Config{}, fmt.Errorf("unsupported scoring mode %q", cfg.ScoringMode)
	}

	if cfg.EvaluationWorkers <= 0 {
		cfg.EvaluationWorkers = 4
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.EvaluationRateLimit <= 0 {
		cfg.EvaluationRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}
