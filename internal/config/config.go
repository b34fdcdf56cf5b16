package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	QueueStream       string `yaml:"queueStream"`
	QueueGroup        string `yaml:"queueGroup"`
	QueueConcurrency  int    `yaml:"queueConcurrency"`
	QueueMaxRetries   int    `yaml:"queueMaxRetries"`
	QueueRetryDelayMS int    `yaml:"queueRetryDelayMs"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	EmbeddingProvider    string `yaml:"embeddingProvider"`
	EmbeddingBaseURL     string `yaml:"embeddingBaseURL"`
	EmbeddingModel       string `yaml:"embeddingModel"`
	EmbeddingDim         int    `yaml:"embeddingDim"`
	EmbeddingBatchSize   int    `yaml:"embeddingBatchSize"`
	EmbeddingConcurrency int    `yaml:"embeddingConcurrency"`

	GenerationProvider       string  `yaml:"generationProvider"`
	GenerationBaseURL        string  `yaml:"generationBaseURL"`
	GenerationAPIKey         string  `yaml:"generationAPIKey"`
	GenerationModel          string  `yaml:"generationModel"`
	GenerationTemperature    float64 `yaml:"generationTemperature"`
	GenerationMaxTokens      int     `yaml:"generationMaxTokens"`
	GenerationTimeoutSeconds int     `yaml:"generationTimeoutSeconds"`

	ChunkSize    int `yaml:"chunkSize"`
	ChunkOverlap int `yaml:"chunkOverlap"`
	TopK         int `yaml:"topK"`

	OCREnabled        bool   `yaml:"ocrEnabled"`
	OCRLanguage       string `yaml:"ocrLanguage"`
	OCRTimeoutSeconds int    `yaml:"ocrTimeoutSeconds"`

	MaxUploadBytes int64 `yaml:"maxUploadBytes"`

	RateLimitEnabled       bool `yaml:"rateLimitEnabled"`
	RateLimitPerMinute     int  `yaml:"rateLimitPerMinute"`
	RateLimitWindowSeconds int  `yaml:"rateLimitWindowSeconds"`

	TrustedProxies []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *FileConfig) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.EmbeddingBaseURL = v
	}
	if v := os.Getenv("GENERATION_BASE_URL"); v != "" {
		cfg.GenerationBaseURL = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.QueueStream == "" {
		cfg.QueueStream = "hireflow:index"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "indexers"
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 2
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 16
	}
	if cfg.EmbeddingConcurrency <= 0 {
		cfg.EmbeddingConcurrency = 2
	}
	if cfg.GenerationTemperature <= 0 {
		cfg.GenerationTemperature = 0.1
	}
	if cfg.GenerationMaxTokens <= 0 {
		cfg.GenerationMaxTokens = 2000
	}
	if cfg.GenerationTimeoutSeconds <= 0 {
		cfg.GenerationTimeoutSeconds = 60
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 100
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.OCRLanguage == "" {
		cfg.OCRLanguage = "eng"
	}
	if cfg.OCRTimeoutSeconds <= 0 {
		cfg.OCRTimeoutSeconds = 60
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if cfg.RateLimitWindowSeconds <= 0 {
		cfg.RateLimitWindowSeconds = 60
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml or MINIO_ENDPOINT)")
	}
	if cfg.MinioAccessKey == "" {
		return errors.New("config: minioAccessKey is required (set in config.yaml or MINIO_ACCESS_KEY)")
	}
	if cfg.MinioSecretKey == "" {
		return errors.New("config: minioSecretKey is required (set in config.yaml or MINIO_SECRET_KEY)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml or MINIO_BUCKET)")
	}
	if cfg.EmbeddingBaseURL == "" {
		return errors.New("config: embeddingBaseURL is required (set in config.yaml or EMBEDDING_BASE_URL)")
	}
	if cfg.EmbeddingModel == "" {
		return errors.New("config: embeddingModel is required (set in config.yaml)")
	}
	if cfg.GenerationBaseURL == "" {
		return errors.New("config: generationBaseURL is required (set in config.yaml or GENERATION_BASE_URL)")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml)")
	}
	switch cfg.EmbeddingProvider {
	case "", "ollama":
	default:
		return fmt.Errorf("config: unsupported embeddingProvider %q", cfg.EmbeddingProvider)
	}
	switch cfg.GenerationProvider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("config: unsupported generationProvider %q", cfg.GenerationProvider)
	}
	return nil
}
