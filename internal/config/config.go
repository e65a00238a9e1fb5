package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the docrag service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Redis       RedisConfig       `yaml:"redis"`
	Records     RecordsConfig     `yaml:"records"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// AuthConfig holds requester identification settings.
// With a JWT secret, bearer tokens are required and "sub" identifies the requester.
// Otherwise the X-User-Id header is trusted.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	Issuer    string   `yaml:"issuer"`
	Audience  string   `yaml:"audience"`
	APIKeys   []string `yaml:"api_keys"`
}

// RedisConfig is the shared Redis/Valkey connection used by the redis drivers and the embedding cache.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// RecordsConfig selects the metadata record store.
type RecordsConfig struct {
	Driver string `yaml:"driver"` // redis (default), postgres, sqlite, mongo
	DSN    string `yaml:"dsn"`    // postgres/sqlite DSN or mongo URI
	// Database is the mongo database name.
	Database string `yaml:"database"`
}

// VectorIndexConfig selects and tunes the vector index.
type VectorIndexConfig struct {
	Driver           string `yaml:"driver"` // redis (default), qdrant
	QdrantAddr       string `yaml:"qdrant_addr"`
	Collection       string `yaml:"collection"`
	Dimensions       int    `yaml:"dimensions"`
	HNSWM            int    `yaml:"hnsw_m"`
	HNSWEFConstruct  int    `yaml:"hnsw_ef_construction"`
	UpsertTimeoutSec int    `yaml:"upsert_timeout_sec"`
}

// ObjectStoreConfig holds S3-compatible object store settings.
type ObjectStoreConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Secure        bool   `yaml:"secure"`
	PublicBaseURL string `yaml:"public_base_url"`
	PresignTTLSec int    `yaml:"presign_ttl_sec"`
}

// EmbeddingConfig holds embedding provider and resilience settings.
type EmbeddingConfig struct {
	Provider     string  `yaml:"provider"` // openai (default), ollama
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	Dimensions   int     `yaml:"dimensions"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	MaxAttempts  int     `yaml:"max_attempts"`
	BackoffMs    int     `yaml:"backoff_ms"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	RateBurst    int     `yaml:"rate_burst"`
	CacheTTLSec  int     `yaml:"cache_ttl_sec"` // 0 = cache disabled
}

// GenerationConfig holds generative model settings.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // openai (default), ollama
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// IndexingConfig tunes the indexing pipeline.
type IndexingConfig struct {
	Concurrency int `yaml:"concurrency"`
	TopK        int `yaml:"top_k"`
}

// Load reads configuration from a YAML file by environment name (local, dev, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	defaultInt(&c.HTTP.ReadTimeoutSec, 30)
	defaultInt(&c.HTTP.WriteTimeoutSec, 300)
	defaultInt(&c.HTTP.ShutdownSec, 10)
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 50 << 20
	}

	defaultInt(&c.Redis.ReadinessTimeout, 10)
	defaultString(&c.Redis.KeyPrefix, "docrag:")

	defaultString(&c.Records.Driver, "redis")
	defaultString(&c.Records.Database, "docrag")

	defaultString(&c.VectorIndex.Driver, "redis")
	defaultString(&c.VectorIndex.Collection, "docrag_segments")
	defaultInt(&c.VectorIndex.HNSWM, 16)
	defaultInt(&c.VectorIndex.HNSWEFConstruct, 200)
	defaultInt(&c.VectorIndex.UpsertTimeoutSec, 120)

	defaultString(&c.ObjectStore.Bucket, "documents")
	defaultString(&c.ObjectStore.Region, "us-east-1")
	defaultInt(&c.ObjectStore.PresignTTLSec, 7*24*3600)

	defaultString(&c.Embedding.Provider, "openai")
	defaultInt(&c.Embedding.TimeoutSec, 10)
	defaultInt(&c.Embedding.MaxAttempts, 3)
	defaultInt(&c.Embedding.BackoffMs, 500)
	defaultInt(&c.Embedding.RateBurst, 1)
	if c.VectorIndex.Dimensions <= 0 {
		c.VectorIndex.Dimensions = c.Embedding.Dimensions
	}

	defaultString(&c.Generation.Provider, c.Embedding.Provider)
	defaultString(&c.Generation.BaseURL, c.Embedding.BaseURL)
	defaultString(&c.Generation.APIKey, c.Embedding.APIKey)
	defaultInt(&c.Generation.MaxTokens, 1024)
	defaultInt(&c.Generation.TimeoutSec, 60)

	defaultInt(&c.Indexing.Concurrency, 4)
	defaultInt(&c.Indexing.TopK, 5)
}

func defaultInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func defaultString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

const maxIndexWorkers = 8

var (
	recordDrivers  = []string{"redis", "postgres", "sqlite", "mongo"}
	vectorDrivers  = []string{"redis", "qdrant"}
	modelProviders = []string{"openai", "ollama"}
)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if !slices.Contains(recordDrivers, c.Records.Driver) {
		return fmt.Errorf("records.driver must be one of %s, got %q", strings.Join(recordDrivers, ", "), c.Records.Driver)
	}
	if !slices.Contains(vectorDrivers, c.VectorIndex.Driver) {
		return fmt.Errorf("vector_index.driver must be one of %s, got %q", strings.Join(vectorDrivers, ", "), c.VectorIndex.Driver)
	}
	needRedis := c.Records.Driver == "redis" || c.VectorIndex.Driver == "redis" || c.Embedding.CacheTTLSec > 0
	if needRedis && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Records.Driver != "redis" && c.Records.DSN == "" {
		return fmt.Errorf("records.dsn is required for driver %q", c.Records.Driver)
	}
	if c.VectorIndex.Driver == "qdrant" && c.VectorIndex.QdrantAddr == "" {
		return fmt.Errorf("vector_index.qdrant_addr is required for driver \"qdrant\"")
	}
	if c.VectorIndex.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	if c.Embedding.Dimensions > 0 && c.Embedding.Dimensions != c.VectorIndex.Dimensions {
		return fmt.Errorf("embedding.dimensions (%d) and vector_index.dimensions (%d) differ",
			c.Embedding.Dimensions, c.VectorIndex.Dimensions)
	}
	if c.ObjectStore.Endpoint == "" {
		return fmt.Errorf("object_store.endpoint is required")
	}
	if !slices.Contains(modelProviders, c.Embedding.Provider) {
		return fmt.Errorf("embedding.provider must be openai or ollama, got %q", c.Embedding.Provider)
	}
	if !slices.Contains(modelProviders, c.Generation.Provider) {
		return fmt.Errorf("generation.provider must be openai or ollama, got %q", c.Generation.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if c.Indexing.Concurrency > maxIndexWorkers {
		return fmt.Errorf("indexing.concurrency must be between 1 and %d, got %d", maxIndexWorkers, c.Indexing.Concurrency)
	}
	return nil
}

// UpsertTimeout returns the vector batch upsert deadline.
func (c *Config) UpsertTimeout() time.Duration {
	return time.Duration(c.VectorIndex.UpsertTimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
