// Package config resolves docroute settings from defaults, the platform
// config backend, a .env file, DOCROUTE_* environment variables and the
// platform secret store, in increasing order of precedence (the secret
// store only fills secrets that are still empty).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// secretService is the keychain service name secrets are stored under.
const secretService = "docroute"

type Config struct {
	LLM     LLMConfig
	Ollama  OllamaConfig
	Store   StoreConfig
	Redis   RedisConfig
	Storage StorageConfig
	Server  ServerConfig
	Log     LogConfig
}

type LLMConfig struct {
	Provider      string
	BaseURL       string
	Model         string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
}

type OllamaConfig struct {
	BaseURL string
}

type StoreConfig struct {
	Backend string
	Timeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:      ProviderOpenAI,
			BaseURL:       "https://api.groq.com/openai/v1",
			Model:         "llama-3.3-70b-versatile",
			Timeout:       90 * time.Second,
			RatePerSecond: 2,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Store: StoreConfig{
			Backend: BackendRedis,
			Timeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration for the current platform. A .env file in the
// working directory is loaded first; it never overrides variables that are
// already set in the environment.
//
// On macOS the backend is UserDefaults (domain: com.docroute.app) and
// secrets fall back to the macOS Keychain. Elsewhere the backend is a JSON
// file at $XDG_CONFIG_HOME/docroute/config.json and secrets fall back to
// $XDG_DATA_HOME/docroute/secrets.json.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Wrapf(err, "loading %s", path)
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, "groq", ProviderOllama:
	default:
		return errors.WithHint(
			errors.Newf("invalid llm.provider %q", c.LLM.Provider),
			"use openai or ollama")
	}
	switch c.Store.Backend {
	case BackendRedis, BackendSQLite:
	default:
		return errors.WithHint(
			errors.Newf("invalid store.backend %q", c.Store.Backend),
			"use redis or sqlite")
	}
	if c.LLM.RatePerSecond < 0 {
		return errors.Newf("invalid llm.rate_per_second %v: must not be negative", c.LLM.RatePerSecond)
	}
	return nil
}

// RequireLLMCredentials returns an error when the hosted provider is
// selected but no API key was found anywhere.
func (c Config) RequireLLMCredentials() error {
	if c.LLM.Provider == ProviderOllama || c.LLM.APIKey != "" {
		return nil
	}
	return errors.WithHint(
		errors.New("missing required config: LLM API key"),
		"set GROQ_API_KEY or DOCROUTE_LLM_API_KEY in the environment or a .env file"+apiKeyHint())
}

// keychainReader reads secrets from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
