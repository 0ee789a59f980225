package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envBotToken, "")
	t.Setenv(envLLMKey, "")
	os.Unsetenv(envBotToken)
	os.Unsetenv(envLLMKey)
}

func TestLoad_FromEnvironmentOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(envBotToken, "bot-token-value")
	t.Setenv(envLLMKey, "llm-key-value")

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BotToken != "bot-token-value" || s.LLMKey != "llm-key-value" {
		t.Errorf("Secrets = %+v, want bot-token-value/llm-key-value", s)
	}
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := envBotToken + "=file-bot-token\n" + envLLMKey + "=file-llm-key\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BotToken != "file-bot-token" || s.LLMKey != "file-llm-key" {
		t.Errorf("Secrets = %+v, want file-bot-token/file-llm-key", s)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := envBotToken + "=file-bot-token\n" + envLLMKey + "=file-llm-key\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(envBotToken, "env-bot-token")

	s, err := Load(envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BotToken != "env-bot-token" {
		t.Errorf("BotToken = %q, want env-bot-token (pre-set env vars must win)", s.BotToken)
	}
	if s.LLMKey != "file-llm-key" {
		t.Errorf("LLMKey = %q, want file-llm-key", s.LLMKey)
	}
}

func TestLoad_MissingBotToken(t *testing.T) {
	clearEnv(t)
	t.Setenv(envLLMKey, "llm-key-value")

	if _, err := Load(""); err == nil {
		t.Error("expected error when bot token is missing")
	}
}

func TestLoad_MissingLLMKey(t *testing.T) {
	clearEnv(t)
	t.Setenv(envBotToken, "bot-token-value")

	if _, err := Load(""); err == nil {
		t.Error("expected error when LLM key is missing")
	}
}

func TestLoad_FallbackKeyIsOptional(t *testing.T) {
	clearEnv(t)
	t.Setenv(envBotToken, "bot-token-value")
	t.Setenv(envLLMKey, "llm-key-value")
	os.Unsetenv(envFallbackKey)

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.FallbackLLMKey != "" {
		t.Errorf("FallbackLLMKey = %q, want empty when unset", s.FallbackLLMKey)
	}

	t.Setenv(envFallbackKey, "fallback-key-value")
	s, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.FallbackLLMKey != "fallback-key-value" {
		t.Errorf("FallbackLLMKey = %q, want fallback-key-value", s.FallbackLLMKey)
	}
}

func TestLoad_MissingEnvFileIsNotFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv(envBotToken, "bot-token-value")
	t.Setenv(envLLMKey, "llm-key-value")

	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BotToken != "bot-token-value" {
		t.Errorf("BotToken = %q, want bot-token-value", s.BotToken)
	}
}
