package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	Backend  BackendConfig
	Firebase FirebaseConfig
	S3       S3Config
	Redis    RedisConfig
	Database DatabaseConfig
	Session  SessionConfig
	Watch    WatchConfig
}

type ServerConfig struct {
	Port              string
	PublicURL         string
	CORSOrigins       []string
	AuthRatePerMinute int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
	AppID       string
}

// BackendConfig selects the document/identity backend and the blob store.
type BackendConfig struct {
	Kind     string // memory, firebase, redis, postgres
	BlobKind string // memory, firebase, s3

	// BlobSignedURLs asks firebase for V4 signed URLs instead of public ones;
	// s3 URLs are always presigned. BlobURLTTL bounds both.
	BlobSignedURLs bool
	BlobURLTTL     time.Duration
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
	APIKey          string
	StorageBucket   string
}

type S3Config struct {
	Bucket string
	Region string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

type SessionConfig struct {
	Secret      string
	IdleTimeout time.Duration
}

type WatchConfig struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

var (
	backendKinds = map[string]bool{"memory": true, "firebase": true, "redis": true, "postgres": true}
	blobKinds    = map[string]bool{"memory": true, "firebase": true, "s3": true}
)

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Server: ServerConfig{
			Port:              port,
			PublicURL:         strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
			CORSOrigins:       getEnvAsList("CORS_ORIGINS"),
			AuthRatePerMinute: getEnvAsInt("AUTH_RATE_PER_MINUTE", 20),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			AppID:       getEnv("APP_ID", "obras"),
		},
		Backend: BackendConfig{
			Kind:           strings.ToLower(getEnv("BACKEND", "memory")),
			BlobKind:       strings.ToLower(getEnv("BLOB_BACKEND", "memory")),
			BlobSignedURLs: getEnvAsBool("BLOB_SIGNED_URLS", true),
			BlobURLTTL:     getEnvAsDuration("BLOB_URL_TTL", 7*24*time.Hour),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			APIKey:          getEnv("FIREBASE_API_KEY", ""),
			StorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		},
		S3: S3Config{
			Bucket: getEnv("S3_BUCKET", ""),
			Region: getEnv("AWS_REGION", "us-east-1"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
		},
		Session: SessionConfig{
			Secret:      getEnv("SESSION_SECRET", ""),
			IdleTimeout: getEnvAsDuration("WORKSPACE_IDLE_TIMEOUT", 30*time.Minute),
		},
		Watch: WatchConfig{
			MinBackoff: getEnvAsDuration("WATCH_MIN_BACKOFF", 500*time.Millisecond),
			MaxBackoff: getEnvAsDuration("WATCH_MAX_BACKOFF", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if !backendKinds[c.Backend.Kind] {
		return fmt.Errorf("BACKEND must be one of memory, firebase, redis, postgres (got %q)", c.Backend.Kind)
	}
	if !blobKinds[c.Backend.BlobKind] {
		return fmt.Errorf("BLOB_BACKEND must be one of memory, firebase, s3 (got %q)", c.Backend.BlobKind)
	}

	if c.Backend.Kind == "firebase" || c.Backend.BlobKind == "firebase" {
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firebase backend")
		}
	}
	if c.Backend.Kind == "firebase" && c.Firebase.APIKey == "" {
		return fmt.Errorf("FIREBASE_API_KEY is required for the firebase backend")
	}
	if c.Backend.BlobKind == "firebase" && c.Firebase.StorageBucket == "" {
		return fmt.Errorf("FIREBASE_STORAGE_BUCKET is required for firebase blobs")
	}
	if c.Backend.BlobKind == "s3" && c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for s3 blobs")
	}
	if c.Backend.Kind == "postgres" {
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres backend")
		}
		if c.Database.MaxConns < 2 || c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("DB_MAX_CONNS must be at least 2 and not below DB_MIN_CONNS")
		}
	}
	if c.Backend.Kind == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis backend")
	}

	if c.App.Environment == "production" && len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes in production")
	}
	if c.Watch.MinBackoff <= 0 || c.Watch.MaxBackoff < c.Watch.MinBackoff {
		return fmt.Errorf("WATCH_MIN_BACKOFF must be positive and not above WATCH_MAX_BACKOFF")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
