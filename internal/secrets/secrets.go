// Package secrets loads the two values the service must never read from the
// YAML configuration file: the chat bot token and the LLM API key. Both come
// exclusively from environment variables, optionally populated from a
// .env-style file.
package secrets

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	envBotToken    = "MINUTES_BOT_TOKEN"
	envLLMKey      = "MINUTES_LLM_API_KEY"
	envFallbackKey = "MINUTES_LLM_FALLBACK_API_KEY"
)

// Secrets holds the values loaded from the environment.
type Secrets struct {
	BotToken string
	LLMKey   string

	// FallbackLLMKey is optional; an empty value lets the fallback provider
	// fall back further to its own default environment variable (e.g.
	// ANTHROPIC_API_KEY), per any-llm-go's own lookup behavior.
	FallbackLLMKey string
}

// Load reads envFile (if non-empty) into the process environment without
// overriding variables already set, then requires MINUTES_BOT_TOKEN and
// MINUTES_LLM_API_KEY to be present. A missing envFile is not an error —
// the environment may already be populated by the deployment platform.
func Load(envFile string) (*Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("secrets: load %q: %w", envFile, err)
		}
	}

	token := os.Getenv(envBotToken)
	if token == "" {
		return nil, fmt.Errorf("secrets: %s is required", envBotToken)
	}
	key := os.Getenv(envLLMKey)
	if key == "" {
		return nil, fmt.Errorf("secrets: %s is required", envLLMKey)
	}

	return &Secrets{BotToken: token, LLMKey: key, FallbackLLMKey: os.Getenv(envFallbackKey)}, nil
}
