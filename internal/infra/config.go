package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string `validate:"required"`
	Port             string `validate:"required,numeric"`
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	CORSOrigins      []string
	RateLimitPerMin  int `validate:"gte=0"`

	EngineURL       string `validate:"required,url"`
	EngineOutputDir string `validate:"required_if=ArtifactSource filesystem"`
	ArtifactSource  string `validate:"oneof=view filesystem"`
	WorkflowPath    string `validate:"required"`
	PollInterval    time.Duration
	PollAttempts    int `validate:"gt=0"`
	Cooldown        time.Duration
	BatchTimeout    time.Duration

	DefaultMaleImage   string
	DefaultFemaleImage string

	StoreDriver   string `validate:"oneof=mongo postgres memory"`
	MongoURI      string `validate:"required_if=StoreDriver mongo"`
	MongoDatabase string
	DatabaseURL   string `validate:"required_if=StoreDriver postgres"`

	Publisher      string `validate:"oneof=s3 filesystem"`
	StoragePath    string
	StorageBaseURL string `validate:"omitempty,url"`
	S3Bucket       string `validate:"required_if=Publisher s3"`
	S3Region       string
	S3Endpoint     string `validate:"omitempty,url"`
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool
	PublicBaseURL  string `validate:"omitempty,url"`

	RedisURL      string
	EngineLockTTL time.Duration
	GeoIPDBPath   string
	DefaultLocale string `validate:"oneof=ko en"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 420)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		EngineURL:       getEnv("ENGINE_URL", "http://127.0.0.1:8188"),
		EngineOutputDir: os.Getenv("ENGINE_OUTPUT_DIR"),
		ArtifactSource:  getEnv("ARTIFACT_SOURCE", "view"),
		WorkflowPath:    getEnv("WORKFLOW_PATH", "assets/workflows/persona.json"),
		PollInterval:    getEnvDuration("POLL_INTERVAL_MS", time.Millisecond, time.Second),
		PollAttempts:    getEnvInt("POLL_ATTEMPTS", 60),
		Cooldown:        getEnvDuration("COOLDOWN_MS", time.Millisecond, 2*time.Second),
		BatchTimeout:    getEnvDuration("BATCH_TIMEOUT_SECONDS", time.Second, 6*time.Minute),

		DefaultMaleImage:   getEnv("DEFAULT_MALE_IMAGE", "assets/images/male.png"),
		DefaultFemaleImage: getEnv("DEFAULT_FEMALE_IMAGE", "assets/images/female.png"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnv("MONGO_DATABASE", "persona"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		Publisher:      strings.ToLower(getEnv("PUBLISHER", "filesystem")),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "ap-northeast-2"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:    os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),

		RedisURL:      os.Getenv("REDIS_URL"),
		EngineLockTTL: getEnvDuration("ENGINE_LOCK_TTL_SECONDS", time.Second, 5*time.Minute),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale: strings.ToLower(getEnv("DEFAULT_LOCALE", "ko")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, unit, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return time.Duration(i) * unit
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
