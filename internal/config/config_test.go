package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:        HTTPConfig{Port: 8080},
		Redis:       RedisConfig{Addrs: []string{"localhost:6379"}},
		ObjectStore: ObjectStoreConfig{Endpoint: "localhost:9000"},
		Embedding:   EmbeddingConfig{Model: "text-embedding-3-small", Dimensions: 1536},
		Generation:  GenerationConfig{Model: "gpt-4o-mini"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"missing redis", func(c *Config) { c.Redis.Addrs = nil }, "redis.addrs is required"},
		{"bad records driver", func(c *Config) { c.Records.Driver = "mysql" }, "records.driver"},
		{"postgres without dsn", func(c *Config) { c.Records.Driver = "postgres" }, "records.dsn"},
		{"bad vector driver", func(c *Config) { c.VectorIndex.Driver = "milvus" }, "vector_index.driver"},
		{"qdrant without addr", func(c *Config) { c.VectorIndex.Driver = "qdrant" }, "qdrant_addr"},
		{"dimension mismatch", func(c *Config) { c.VectorIndex.Dimensions = 768 }, "differ"},
		{"missing endpoint", func(c *Config) { c.ObjectStore.Endpoint = "" }, "object_store.endpoint"},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "gemini" }, "embedding.provider"},
		{"missing generation model", func(c *Config) { c.Generation.Model = "" }, "generation.model"},
		{"too many workers", func(c *Config) { c.Indexing.Concurrency = 16 }, "indexing.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidate_NoRedisNeeded(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Addrs = nil
	cfg.Records = RecordsConfig{Driver: "sqlite", DSN: "file:docrag.db"}
	cfg.VectorIndex.Driver = "qdrant"
	cfg.VectorIndex.QdrantAddr = "localhost:6334"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{Dimensions: 768, Provider: "ollama", BaseURL: "http://ollama:11434"}}
	cfg.ApplyDefaults()

	checks := []struct {
		name     string
		got, want any
	}{
		{"read timeout", cfg.HTTP.ReadTimeoutSec, 30},
		{"shutdown", cfg.HTTP.ShutdownSec, 10},
		{"max upload", cfg.HTTP.MaxUploadBytes, int64(50 << 20)},
		{"key prefix", cfg.Redis.KeyPrefix, "docrag:"},
		{"records driver", cfg.Records.Driver, "redis"},
		{"vector driver", cfg.VectorIndex.Driver, "redis"},
		{"vector dims", cfg.VectorIndex.Dimensions, 768},
		{"upsert timeout", cfg.VectorIndex.UpsertTimeoutSec, 120},
		{"attempts", cfg.Embedding.MaxAttempts, 3},
		{"embed timeout", cfg.Embedding.TimeoutSec, 10},
		{"generation provider", cfg.Generation.Provider, "ollama"},
		{"generation base url", cfg.Generation.BaseURL, "http://ollama:11434"},
		{"concurrency", cfg.Indexing.Concurrency, 4},
		{"top k", cfg.Indexing.TopK, 5},
		{"bucket", cfg.ObjectStore.Bucket, "documents"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DOCRAG_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${DOCRAG_TEST_KEY}\nb: ${DOCRAG_TEST_MISSING:-fallback}\nc: ${DOCRAG_TEST_MISSING}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("expandEnvVars() = %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	t.Setenv("DOCRAG_TEST_PORT", "9090")

	cfg, err := Parse([]byte(`
http:
  port: ${DOCRAG_TEST_PORT}
redis:
  addrs: ["localhost:6379"]
object_store:
  endpoint: localhost:9000
embedding:
  model: nomic-embed-text
  dimensions: 768
  provider: ollama
generation:
  model: llama3.2
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.UpsertTimeout().Seconds() != 120 {
		t.Errorf("UpsertTimeout() = %v", cfg.UpsertTimeout())
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Parse([]byte("http:\n  port: 0\n")); err == nil {
		t.Error("expected validation error")
	}
}
