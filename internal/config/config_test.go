package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
port: "8080"
databaseURL: "postgres://localhost/hireflow"
redisAddr: "localhost:6379"
minioEndpoint: "localhost:9000"
minioAccessKey: "key"
minioSecretKey: "secret"
minioBucket: "resumes"
embeddingBaseURL: "http://localhost:11434"
embeddingModel: "nomic-embed-text"
generationBaseURL: "http://localhost:11434"
generationModel: "llama3"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 100 {
		t.Fatalf("unexpected chunk defaults: size=%d overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 {
		t.Fatalf("unexpected topK default: %d", cfg.TopK)
	}
	if cfg.QueueStream != "hireflow:index" {
		t.Fatalf("unexpected queue stream default: %q", cfg.QueueStream)
	}
	if cfg.GenerationTimeoutSeconds != 60 {
		t.Fatalf("unexpected generation timeout default: %d", cfg.GenerationTimeoutSeconds)
	}
}

func TestLoadRejectsMissingPort(t *testing.T) {
	content := strings.Replace(minimalYAML, `port: "8080"`, "", 1)
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestLoadEnvOverridesDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override/hireflow")
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://override/hireflow" {
		t.Fatalf("env override not applied: %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	content := minimalYAML + "\ngenerationProvider: \"vertex\"\n"
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestLoadResetsOverlapLargerThanChunk(t *testing.T) {
	content := minimalYAML + "\nchunkSize: 200\nchunkOverlap: 300\n"
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkOverlap != 100 {
		t.Fatalf("expected overlap reset to 100, got %d", cfg.ChunkOverlap)
	}
}
