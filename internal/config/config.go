// Package config loads the agent's runtime configuration from the
// environment. A .env file in the working directory is honored when
// present; real environment variables always win.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration.
type Config struct {
	// DataDir is where the SQLite database lives.
	DataDir string

	// Language-model collaborator (OpenAI-compatible endpoint).
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	// Optional remote semantic-search index. Empty URL disables the
	// semantic provider; search runs on the local keyword provider only.
	SemanticSearchURL string
	SemanticSearchKey string

	// DeepLinkBaseURL is the prefix for message deep links in citations.
	DeepLinkBaseURL string

	// ContextTTL bounds how long an unclaimed request context survives
	// in the registry before expiring.
	ContextTTL time.Duration

	// BotName is the display name used for assistant-authored messages.
	BotName string

	LogLevel string
}

// Load reads configuration from the environment with sensible defaults.
// godotenv is best-effort: a missing .env file is not an error.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}

	home, _ := os.UserHomeDir()

	return &Config{
		DataDir:           getEnv("COLLAB_DATA_DIR", filepath.Join(home, ".collab")),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SemanticSearchURL: getEnv("SEMANTIC_SEARCH_URL", ""),
		SemanticSearchKey: getEnv("SEMANTIC_SEARCH_KEY", ""),
		DeepLinkBaseURL:   getEnv("DEEP_LINK_BASE_URL", "https://teams.microsoft.com/l/message"),
		ContextTTL:        getDurationEnv("COLLAB_CONTEXT_TTL", 10*time.Minute),
		BotName:           getEnv("COLLAB_BOT_NAME", "Collaborator"),
		LogLevel:          getEnv("COLLAB_LOG_LEVEL", "info"),
	}
}

// ConfigureLogging applies the configured log level to the global logger.
// An unparseable level falls back to info.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.WithField("key", key).Warnf("unparseable duration %q, using default", v)
	return defaultVal
}
