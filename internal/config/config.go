package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendGroq   = "groq"
	BackendOllama = "ollama"

	defaultSecret = "dev-secret-change-in-production"
)

// Config holds all service configuration. It is built once at startup and
// passed explicitly to the components that need it.
type Config struct {
	Port        string `yaml:"port"`
	SecretKey   string `yaml:"secret_key"`
	DatabaseURL string `yaml:"database_url"`

	GroqAPIKey      string        `yaml:"groq_api_key"`
	GroqModel       string        `yaml:"groq_model"`
	GroqBaseURL     string        `yaml:"groq_base_url"`
	OllamaHost      string        `yaml:"ollama_host"`
	OllamaModel     string        `yaml:"ollama_model"`
	AITimeout       time.Duration `yaml:"ai_timeout"`
	AIStreamTimeout time.Duration `yaml:"ai_stream_timeout"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`

	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Port:            "8080",
		SecretKey:       defaultSecret,
		DatabaseURL:     "cms.db",
		GroqModel:       "llama-3.1-8b-instant",
		GroqBaseURL:     "https://api.groq.com/openai/v1",
		OllamaHost:      "http://localhost:11434",
		OllamaModel:     "llama3",
		AITimeout:       30 * time.Second,
		AIStreamTimeout: 60 * time.Second,
		MongoDB:         "course_assistant",
		MinioBucket:     "semester-summaries",
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getenv("PORT", c.Port)
	c.SecretKey = getenv("SECRET_KEY", getenv("CMS_SECRET", c.SecretKey))
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)

	c.GroqAPIKey = getenv("GROQ_API_KEY", c.GroqAPIKey)
	c.GroqModel = getenv("GROQ_MODEL", c.GroqModel)
	c.GroqBaseURL = getenv("GROQ_BASE_URL", c.GroqBaseURL)
	c.OllamaHost = getenv("OLLAMA_HOST", c.OllamaHost)
	c.OllamaModel = getenv("OLLAMA_MODEL", c.OllamaModel)

	var err error
	if c.AITimeout, err = getenvDuration("AI_TIMEOUT", c.AITimeout); err != nil {
		return err
	}
	if c.AIStreamTimeout, err = getenvDuration("AI_STREAM_TIMEOUT", c.AIStreamTimeout); err != nil {
		return err
	}

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}

	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDB = getenv("MONGO_DB", c.MongoDB)

	c.MinioEndpoint = getenv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getenv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getenv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getenv("MINIO_BUCKET", c.MinioBucket)
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		c.MinioUseSSL = v == "true"
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}

	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		c.LogPretty = v == "true"
	}
	return nil
}

// AIBackend names the completion backend. A Groq API key selects the cloud
// backend; without one the local Ollama server is used.
func (c *Config) AIBackend() string {
	if c.GroqAPIKey != "" {
		return BackendGroq
	}
	return BackendOllama
}

// UsesDefaultSecret reports whether SECRET_KEY was left at the dev value.
func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == defaultSecret
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
