package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// ErrInvalidConfig marks configuration validation failures
var ErrInvalidConfig = errors.New("invalid configuration")

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StorageConfig struct {
	Backend       string        `yaml:"backend"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type UploadConfig struct {
	Dir         string `yaml:"dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// MaxBytes is the upload limit in bytes
func (u UploadConfig) MaxBytes() int64 {
	return u.MaxUploadMB * 1024 * 1024
}

type SamplesConfig struct {
	CacheDir string `yaml:"cache_dir"`
}

// AuthConfig verifies tokens issued by the external identity provider
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"`
	Required  bool   `yaml:"required"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
	AllowedMethods string `yaml:"allowed_methods"`
	AllowedHeaders string `yaml:"allowed_headers"`
}

type ProcessingConfig struct {
	WorkerPoolSize int           `yaml:"worker_pool_size"`
	IndexTimeout   time.Duration `yaml:"index_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
}

// Config is the full server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Uploads    UploadConfig     `yaml:"uploads"`
	Samples    SamplesConfig    `yaml:"samples"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	Processing ProcessingConfig `yaml:"processing"`
	AI         AIConfig         `yaml:"ai"`
}

// Default returns the built-in configuration before file and env overlays
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8000", ShutdownTimeout: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Storage: StorageConfig{
			Backend:       BackendMemory,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "coherence",
			RedisAddr:     "localhost:6379",
			TTL:           24 * time.Hour,
		},
		Uploads: UploadConfig{Dir: "videos", MaxUploadMB: 500},
		Samples: SamplesConfig{CacheDir: "cache"},
		CORS: CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET, POST, PUT, DELETE, OPTIONS",
			AllowedHeaders: "Content-Type, Authorization",
		},
		Processing: ProcessingConfig{
			WorkerPoolSize: 3,
			IndexTimeout:   10 * time.Minute,
			RunTimeout:     20 * time.Minute,
		},
		AI: *DefaultAIConfig(),
	}
}

// Load reads .env (if present), the YAML file named by COHERENCE_CONFIG
// (if set) and finally environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("COHERENCE_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields with environment variables that are set
func (c *Config) ApplyEnv() {
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)

	c.Storage.Backend = getEnvOrDefault("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.MongoURI = getEnvOrDefault("MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDatabase = getEnvOrDefault("MONGO_DATABASE", c.Storage.MongoDatabase)
	c.Storage.RedisAddr = strings.TrimPrefix(getEnvOrDefault("REDIS_URI", c.Storage.RedisAddr), "redis://")
	c.Storage.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.Storage.RedisPassword)

	c.Uploads.Dir = getEnvOrDefault("VIDEOS_DIR", c.Uploads.Dir)
	if v, err := strconv.ParseInt(os.Getenv("MAX_UPLOAD_MB"), 10, 64); err == nil {
		c.Uploads.MaxUploadMB = v
	}
	c.Samples.CacheDir = getEnvOrDefault("SAMPLES_CACHE_DIR", c.Samples.CacheDir)

	c.Auth.JWTSecret = getEnvOrDefault("SUPABASE_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Audience = getEnvOrDefault("SUPABASE_JWT_AUDIENCE", c.Auth.Audience)
	if v, err := strconv.ParseBool(os.Getenv("AUTH_REQUIRED")); err == nil {
		c.Auth.Required = v
	}

	c.CORS.AllowedOrigins = getEnvOrDefault("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)
	c.CORS.AllowedMethods = getEnvOrDefault("CORS_ALLOWED_METHODS", c.CORS.AllowedMethods)
	c.CORS.AllowedHeaders = getEnvOrDefault("CORS_ALLOWED_HEADERS", c.CORS.AllowedHeaders)

	if v, err := strconv.Atoi(os.Getenv("WORKER_POOL_SIZE")); err == nil {
		c.Processing.WorkerPoolSize = v
	}
	if v, err := time.ParseDuration(os.Getenv("INDEX_TIMEOUT")); err == nil {
		c.Processing.IndexTimeout = v
	}

	c.AI.Gemini.APIKey = getEnvOrDefault("GEMINI_API_KEY", c.AI.Gemini.APIKey)
	c.AI.TwelveLabs.APIKey = getEnvOrDefault("TWELVELABS_API_KEY", c.AI.TwelveLabs.APIKey)
	c.AI.TwelveLabs.IndexName = getEnvOrDefault("TWELVELABS_INDEX_NAME", c.AI.TwelveLabs.IndexName)
	c.AI.Deepgram.APIKey = getEnvOrDefault("DEEPGRAM_API_KEY", c.AI.Deepgram.APIKey)
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("%w: storage.backend must be memory, redis or mongo, got %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Uploads.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: uploads.max_upload_mb must be positive", ErrInvalidConfig)
	}
	if c.Processing.WorkerPoolSize < 1 {
		return fmt.Errorf("%w: processing.worker_pool_size must be at least 1", ErrInvalidConfig)
	}
	if c.Processing.IndexTimeout <= 0 {
		return fmt.Errorf("%w: processing.index_timeout must be positive", ErrInvalidConfig)
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required when auth.required is true", ErrInvalidConfig)
	}
	return nil
}
