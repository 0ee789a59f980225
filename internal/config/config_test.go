package config_test

import (
	"strings"
	"testing"

	"github.com/junzi314/minutes/internal/config"
)

const sampleYAML = `
chat:
  watch_channel_id: 111
  output_channel_id: 222
  error_mention_role_id: 333

source:
  bot_id: 999
  domain_allowlist:
    - cook.example.com
  format: opus
  container: zip
  download_timeout_sec: 120
  max_retries: 3

recognizer:
  model: /models/ggml-medium.bin
  language: en
  device: cpu
  compute_type: int8
  beam_size: 5
  vad_filter: true

merger:
  gap_merge_threshold_sec: 1.5

generator:
  model: gpt-4o
  max_tokens: 2000
  temperature: 0.2
  prompt_template_path: ./prompts/minutes.tmpl
  max_retries: 2

publisher:
  embed_color: 3066993
  max_embed_length: 4096
  include_transcript: true

drive:
  enabled: true
  folder_id: abc123
  poll_interval_sec: 45
  credentials_file: ./drive-creds.json

logging:
  level: info
  file: ./service.log
  max_bytes: 1048576
  backup_count: 3

health:
  listen_addr: ":8090"

metrics:
  listen_addr: ":9090"
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chat.WatchChannelID != 111 {
		t.Errorf("chat.watch_channel_id: got %d, want 111", cfg.Chat.WatchChannelID)
	}
	if cfg.Chat.OutputChannelID != 222 {
		t.Errorf("chat.output_channel_id: got %d, want 222", cfg.Chat.OutputChannelID)
	}
	if cfg.Source.BotID != 999 {
		t.Errorf("source.bot_id: got %d, want 999", cfg.Source.BotID)
	}
	if len(cfg.Source.DomainAllowlist) != 1 || cfg.Source.DomainAllowlist[0] != "cook.example.com" {
		t.Errorf("source.domain_allowlist: got %v", cfg.Source.DomainAllowlist)
	}
	if cfg.Recognizer.Model != "/models/ggml-medium.bin" {
		t.Errorf("recognizer.model: got %q", cfg.Recognizer.Model)
	}
	if cfg.Merger.GapMergeThresholdSec != 1.5 {
		t.Errorf("merger.gap_merge_threshold_sec: got %.2f, want 1.5", cfg.Merger.GapMergeThresholdSec)
	}
	if cfg.Generator.Model != "gpt-4o" {
		t.Errorf("generator.model: got %q", cfg.Generator.Model)
	}
	if cfg.Drive.FolderID != "abc123" {
		t.Errorf("drive.folder_id: got %q", cfg.Drive.FolderID)
	}
	if cfg.Logging.Level != config.LogInfo {
		t.Errorf("logging.level: got %q, want %q", cfg.Logging.Level, config.LogInfo)
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	yaml := `
chat:
  watch_channel_id: 1
  output_channel_id: 2
source:
  bot_id: 3
  domain_allowlist: [example.com]
recognizer:
  model: /models/ggml-base.bin
generator:
  model: gpt-4o
  prompt_template_path: ./prompts/minutes.tmpl
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source.DownloadTimeoutSec != 300 {
		t.Errorf("source.download_timeout_sec default: got %d, want 300", cfg.Source.DownloadTimeoutSec)
	}
	if cfg.Source.MaxRetries != 2 {
		t.Errorf("source.max_retries default: got %d, want 2", cfg.Source.MaxRetries)
	}
	if cfg.Merger.GapMergeThresholdSec != 1.0 {
		t.Errorf("merger.gap_merge_threshold_sec default: got %.2f, want 1.0", cfg.Merger.GapMergeThresholdSec)
	}
	if cfg.Drive.PollIntervalSec != 30 {
		t.Errorf("drive.poll_interval_sec default: got %d, want 30", cfg.Drive.PollIntervalSec)
	}
	if cfg.Logging.Level != config.LogInfo {
		t.Errorf("logging.level default: got %q, want %q", cfg.Logging.Level, config.LogInfo)
	}
	if cfg.Health.ListenAddr == "" {
		t.Error("health.listen_addr default should not be empty")
	}
	if cfg.Metrics.ListenAddr == "" {
		t.Error("metrics.listen_addr default should not be empty")
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for empty config, got nil")
	}
	for _, want := range []string{"chat.watch_channel_id", "chat.output_channel_id", "source.bot_id", "source.domain_allowlist", "recognizer.model", "generator.model", "generator.prompt_template_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
chat:
  watch_channel_id: 1
  output_channel_id: 2
source:
  bot_id: 3
  domain_allowlist: [example.com]
recognizer:
  model: /models/ggml-base.bin
generator:
  model: gpt-4o
  prompt_template_path: ./prompts/minutes.tmpl
logging:
  level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("error should mention logging.level, got: %v", err)
	}
}

func TestValidate_InvalidTemperature(t *testing.T) {
	yaml := `
chat:
  watch_channel_id: 1
  output_channel_id: 2
source:
  bot_id: 3
  domain_allowlist: [example.com]
recognizer:
  model: /models/ggml-base.bin
generator:
  model: gpt-4o
  prompt_template_path: ./prompts/minutes.tmpl
  temperature: 5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
}

func TestValidate_DriveEnabledRequiresFolderAndCreds(t *testing.T) {
	yaml := `
chat:
  watch_channel_id: 1
  output_channel_id: 2
source:
  bot_id: 3
  domain_allowlist: [example.com]
recognizer:
  model: /models/ggml-base.bin
generator:
  model: gpt-4o
  prompt_template_path: ./prompts/minutes.tmpl
drive:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for drive enabled without folder_id/credentials_file, got nil")
	}
	if !strings.Contains(err.Error(), "folder_id") || !strings.Contains(err.Error(), "credentials_file") {
		t.Errorf("error should mention folder_id and credentials_file, got: %v", err)
	}
}

func TestValidate_DriveDisabledNoRequirements(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(validMinimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

const validMinimalYAML = `
chat:
  watch_channel_id: 1
  output_channel_id: 2
source:
  bot_id: 3
  domain_allowlist: [example.com]
recognizer:
  model: /models/ggml-base.bin
generator:
  model: gpt-4o
  prompt_template_path: ./prompts/minutes.tmpl
`
