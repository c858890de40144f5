package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"geolens/internal/cache"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
	Engines  EnginesConfig
	Hints    HintsConfig
	Vision   VisionConfig
	Dataset  DatasetConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxImageBytes int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type EnginesConfig struct {
	// Order lists remote engine names in descending priority.
	Order []string
}

type HintsConfig struct {
	UploadURL string
	UploadKey string
	RelayURL  string
	CacheTTL  time.Duration
}

type VisionConfig struct {
	ClassifierURL     string
	TextRecognizerURL string
}

type DatasetConfig struct {
	URL string
}

type PipelineConfig struct {
	MinConfidence float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			ReadTimeout:   getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:  getEnvAsDuration("WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:   getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			MaxImageBytes: getEnvAsInt64("MAX_IMAGE_BYTES", 10<<20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Engines: EnginesConfig{
			Order: getEnvAsList("ENGINE_ORDER", []string{"gemini", "openai"}),
		},
		Hints: HintsConfig{
			UploadURL: getEnv("IMAGE_UPLOAD_URL", "https://api.imgbb.com/1/upload"),
			UploadKey: getEnv("IMAGE_UPLOAD_KEY", ""),
			RelayURL:  getEnv("SEARCH_RELAY_URL", "http://localhost:8081"),
			CacheTTL:  getEnvAsDuration("HINT_CACHE_TTL", cache.DefaultHintTTL),
		},
		Vision: VisionConfig{
			ClassifierURL:     getEnv("CLASSIFIER_URL", "http://localhost:8090"),
			TextRecognizerURL: getEnv("TEXT_RECOGNIZER_URL", "http://localhost:8091"),
		},
		Dataset: DatasetConfig{
			URL: getEnv("DATASET_URL", ""),
		},
		Pipeline: PipelineConfig{
			MinConfidence: getEnvAsFloat("MIN_CONFIDENCE", 0.3),
		},
	}

	if cfg.Gemini.APIKey == "" && cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("at least one of GEMINI_API_KEY or OPENAI_API_KEY is required")
	}
	if cfg.Dataset.URL == "" {
		return nil, fmt.Errorf("DATASET_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
