package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values applied to zero-valued fields after decoding.
const (
	defaultDownloadTimeoutSec  = 300
	defaultSourceMaxRetries    = 2
	defaultDrivePollIntervalSec = 30
	defaultGapMergeThresholdSec = 1.0
	defaultGeneratorMaxRetries = 2
	defaultMaxEmbedLength      = 4096
	defaultHealthListenAddr    = ":8090"
	defaultMetricsListenAddr   = ":9090"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued optional fields with their documented
// defaults. Required fields are left untouched so Validate can reject them.
func applyDefaults(cfg *Config) {
	if cfg.Source.DownloadTimeoutSec <= 0 {
		cfg.Source.DownloadTimeoutSec = defaultDownloadTimeoutSec
	}
	if cfg.Source.MaxRetries <= 0 {
		cfg.Source.MaxRetries = defaultSourceMaxRetries
	}
	if cfg.Merger.GapMergeThresholdSec <= 0 {
		cfg.Merger.GapMergeThresholdSec = defaultGapMergeThresholdSec
	}
	if cfg.Generator.MaxRetries <= 0 {
		cfg.Generator.MaxRetries = defaultGeneratorMaxRetries
	}
	if cfg.Publisher.MaxEmbedLength <= 0 {
		cfg.Publisher.MaxEmbedLength = defaultMaxEmbedLength
	}
	if cfg.Drive.PollIntervalSec <= 0 {
		cfg.Drive.PollIntervalSec = defaultDrivePollIntervalSec
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogInfo
	}
	if cfg.Health.ListenAddr == "" {
		cfg.Health.ListenAddr = defaultHealthListenAddr
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = defaultMetricsListenAddr
	}
}

// Validate checks that cfg contains a coherent, complete set of values. It
// returns a joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}

	if cfg.Chat.WatchChannelID == 0 {
		errs = append(errs, errors.New("chat.watch_channel_id is required"))
	}
	if cfg.Chat.OutputChannelID == 0 {
		errs = append(errs, errors.New("chat.output_channel_id is required"))
	}

	if cfg.Source.BotID == 0 {
		errs = append(errs, errors.New("source.bot_id is required"))
	}
	if len(cfg.Source.DomainAllowlist) == 0 {
		errs = append(errs, errors.New("source.domain_allowlist must list at least one host"))
	}

	if cfg.Recognizer.Model == "" {
		errs = append(errs, errors.New("recognizer.model is required"))
	}

	if cfg.Merger.GapMergeThresholdSec < 0 {
		errs = append(errs, fmt.Errorf("merger.gap_merge_threshold_sec %.2f must be >= 0", cfg.Merger.GapMergeThresholdSec))
	}

	if cfg.Generator.Model == "" {
		errs = append(errs, errors.New("generator.model is required"))
	}
	if cfg.Generator.PromptTemplatePath == "" {
		errs = append(errs, errors.New("generator.prompt_template_path is required"))
	}
	if cfg.Generator.Temperature < 0 || cfg.Generator.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generator.temperature %.2f is out of range [0, 2]", cfg.Generator.Temperature))
	}

	if cfg.Drive.Enabled {
		if cfg.Drive.FolderID == "" {
			errs = append(errs, errors.New("drive.folder_id is required when drive.enabled is true"))
		}
		if cfg.Drive.CredentialsFile == "" {
			errs = append(errs, errors.New("drive.credentials_file is required when drive.enabled is true"))
		}
	}

	return errors.Join(errs...)
}
