// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds every setting of the server process
type Config struct {
	Port     string
	Env      string
	LogLevel string

	TranscriptionAPIURL string
	TranscribeTimeout   time.Duration
	InputLanguage       string
	OutputLanguage      string

	StoreDriver       string
	MongoURI          string
	MongoDatabase     string
	ReferencePrefix   string
	ReferencePadding  int
	RedisURL          string
	TemplatesCacheTTL time.Duration
	KafkaBrokers      []string
	KafkaTopic        string

	JWTSecret string
}

// IsDev reports whether the process runs in development mode
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

// Addr returns the listen address
func (c Config) Addr() string {
	return ":" + c.Port
}

var defaults = map[string]interface{}{
	"PORT":                          "8080",
	"ENV":                           "",
	"LOG_LEVEL":                     "info",
	"TRANSCRIPTION_API_URL":         "http://host.docker.internal:5001",
	"TRANSCRIPTION_API_TIMEOUT":     300,
	"TRANSCRIPTION_INPUT_LANGUAGE":  "fr",
	"TRANSCRIPTION_OUTPUT_LANGUAGE": "fr",
	"STORE_DRIVER":                  StoreMongo,
	"MONGODB_URI":                   "mongodb://localhost:27017",
	"MONGODB_DATABASE":              "medical_transcription",
	"REFERENCE_PREFIX":              "MT",
	"REFERENCE_PADDING":             5,
	"REDIS_URL":                     "",
	"TEMPLATES_CACHE_TTL":           300,
	"KAFKA_BROKERS":                 "",
	"KAFKA_TOPIC":                   "medical-transcription.events",
	"JWT_SECRET":                    "",
}

type loadOptions struct {
	envFile string
}

// Option customizes Load
type Option func(*loadOptions)

// WithEnvFile reads variables from path instead of ./.env
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// Load reads the configuration. Variables from the env file, when it
// exists, never override variables already set in the environment.
func Load(opts ...Option) (Config, error) {
	o := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := os.Stat(o.envFile); err == nil {
		if err := godotenv.Load(o.envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := Config{
		Port:     v.GetString("PORT"),
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),

		TranscriptionAPIURL: v.GetString("TRANSCRIPTION_API_URL"),
		TranscribeTimeout:   time.Duration(v.GetInt("TRANSCRIPTION_API_TIMEOUT")) * time.Second,
		InputLanguage:       v.GetString("TRANSCRIPTION_INPUT_LANGUAGE"),
		OutputLanguage:      v.GetString("TRANSCRIPTION_OUTPUT_LANGUAGE"),

		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:          v.GetString("MONGODB_URI"),
		MongoDatabase:     v.GetString("MONGODB_DATABASE"),
		ReferencePrefix:   v.GetString("REFERENCE_PREFIX"),
		ReferencePadding:  v.GetInt("REFERENCE_PADDING"),
		RedisURL:          v.GetString("REDIS_URL"),
		TemplatesCacheTTL: time.Duration(v.GetInt("TEMPLATES_CACHE_TTL")) * time.Second,
		KafkaBrokers:      splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),

		JWTSecret: v.GetString("JWT_SECRET"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected %s or %s)", c.StoreDriver, StoreMongo, StoreMemory)
	}
	if c.TranscribeTimeout <= 0 {
		return fmt.Errorf("TRANSCRIPTION_API_TIMEOUT must be positive")
	}
	if c.ReferencePadding < 0 {
		return fmt.Errorf("REFERENCE_PADDING must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
