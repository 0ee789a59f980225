// Package config provides the configuration schema and loader for the
// minutes pipeline service.
package config

// Config is the root configuration structure for the service. It is
// typically loaded from a YAML file using [Load] or [LoadFromReader].
//
// The two secrets the service needs — the chat bot token and the LLM API
// key — are never read from this structure; they come exclusively from an
// environment file (see internal/secrets).
type Config struct {
	Chat       ChatConfig       `yaml:"chat"`
	Source     SourceConfig     `yaml:"source"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Merger     MergerConfig     `yaml:"merger"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Drive      DriveConfig      `yaml:"drive"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LogLevel controls logging verbosity.
type LogLevel string

// Recognized LogLevel values.
const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognized LogLevel values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	default:
		return false
	}
}

// ChatConfig identifies the channels the service listens on and publishes to.
type ChatConfig struct {
	// WatchChannelID is the channel the Panel Detector listens on for
	// recording-panel edits.
	WatchChannelID uint64 `yaml:"watch_channel_id"`

	// OutputChannelID is the channel minutes and status lines are published to.
	OutputChannelID uint64 `yaml:"output_channel_id"`

	// ErrorMentionRoleID, if non-zero, is mentioned in every error embed.
	ErrorMentionRoleID uint64 `yaml:"error_mention_role_id"`
}

// SourceConfig configures the Cook-API client used to acquire recording
// archives.
type SourceConfig struct {
	// BotID is the identity of the recording bot whose panel edits are
	// recognized as triggers.
	BotID uint64 `yaml:"bot_id"`

	// DomainAllowlist lists hosts accepted in the recording URL embedded in
	// a panel edit.
	DomainAllowlist []string `yaml:"domain_allowlist"`

	// Format is the requested audio codec for the cooked archive (e.g., "opus").
	Format string `yaml:"format"`

	// Container is the requested archive container (e.g., "zip").
	Container string `yaml:"container"`

	// DownloadTimeoutSec bounds the combined cook+download wall-clock time.
	DownloadTimeoutSec int `yaml:"download_timeout_sec"`

	// MaxRetries is the number of retries for transient archive-acquisition
	// failures.
	MaxRetries int `yaml:"max_retries"`
}

// RecognizerConfig configures the speech-to-text backend.
type RecognizerConfig struct {
	// Model is the path (or identifier) of the recognition model to load.
	Model string `yaml:"model"`

	// Language is the BCP-47 language tag recognition defaults to.
	Language string `yaml:"language"`

	// Device selects the inference device (e.g., "cpu", "cuda").
	Device string `yaml:"device"`

	// ComputeType selects the numeric precision used for inference (e.g.,
	// "int8", "float16").
	ComputeType string `yaml:"compute_type"`

	// BeamSize is the decoder beam width.
	BeamSize int `yaml:"beam_size"`

	// VADFilter enables the recognizer's own voice-activity pre-filter.
	VADFilter bool `yaml:"vad_filter"`
}

// MergerConfig configures the transcript Merger.
type MergerConfig struct {
	// GapMergeThresholdSec is the gap, in seconds, that two consecutive
	// same-speaker segments must be strictly below to be coalesced into one line.
	GapMergeThresholdSec float64 `yaml:"gap_merge_threshold_sec"`
}

// GeneratorConfig configures the LLM-backed minutes Generator.
type GeneratorConfig struct {
	Model              string  `yaml:"model"`
	MaxTokens          int     `yaml:"max_tokens"`
	Temperature        float64 `yaml:"temperature"`
	PromptTemplatePath string  `yaml:"prompt_template_path"`
	MaxRetries         int     `yaml:"max_retries"`

	// FallbackProvider names an any-llm-go backend ("anthropic", "gemini",
	// "ollama", ...) to fail over to when the primary OpenAI-compatible
	// client's circuit breaker trips. Empty disables the fallback path.
	FallbackProvider string `yaml:"fallback_provider"`
	FallbackModel    string `yaml:"fallback_model"`
}

// PublisherConfig configures the Publisher's output formatting.
type PublisherConfig struct {
	// EmbedColor is a 24-bit RGB value used for the success embed.
	EmbedColor int `yaml:"embed_color"`

	// MaxEmbedLength is the platform's description length limit; longer
	// summaries are truncated with a "see attached" note.
	MaxEmbedLength int `yaml:"max_embed_length"`

	// IncludeTranscript, when true, attaches the raw merged transcript
	// alongside the generated minutes.
	IncludeTranscript bool `yaml:"include_transcript"`
}

// DriveConfig configures the cloud-folder watcher.
type DriveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	FolderID        string `yaml:"folder_id"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	CredentialsFile string `yaml:"credentials_file"`
}

// LoggingConfig configures log output and rotation.
type LoggingConfig struct {
	Level       LogLevel `yaml:"level"`
	File        string   `yaml:"file"`
	MaxBytes    int      `yaml:"max_bytes"`
	BackupCount int      `yaml:"backup_count"`
}

// HealthConfig configures the /healthz and /readyz HTTP server.
type HealthConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// MetricsConfig configures the Prometheus /metrics HTTP server.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}
