// Command minutes is the entry point for the meeting-minutes automation
// service: it wires the panel detector and drive watcher triggers to the
// acquire/transcribe/merge/generate/publish pipeline and serves health and
// metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/junzi314/minutes/internal/config"
	"github.com/junzi314/minutes/internal/discord"
	"github.com/junzi314/minutes/internal/drive"
	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/generate"
	"github.com/junzi314/minutes/internal/health"
	"github.com/junzi314/minutes/internal/logging"
	"github.com/junzi314/minutes/internal/merge"
	"github.com/junzi314/minutes/internal/model"
	"github.com/junzi314/minutes/internal/observe"
	"github.com/junzi314/minutes/internal/panel"
	"github.com/junzi314/minutes/internal/pipeline"
	"github.com/junzi314/minutes/internal/publish"
	"github.com/junzi314/minutes/internal/resilience"
	"github.com/junzi314/minutes/internal/secrets"
	"github.com/junzi314/minutes/internal/source"
	"github.com/junzi314/minutes/internal/transcribe"
	"github.com/junzi314/minutes/pkg/provider/llm"
	"github.com/junzi314/minutes/pkg/provider/llm/anyllm"
	"github.com/junzi314/minutes/pkg/provider/llm/openai"
	"github.com/junzi314/minutes/pkg/provider/stt/whisper"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "./config.yaml", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "minutes: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "minutes: %v\n", err)
		}
		return 1
	}
	if *logLevel != "" {
		cfg.Logging.Level = config.LogLevel(*logLevel)
	}

	secretsSet, err := secrets.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "minutes: %v\n", err)
		return 1
	}

	redactingHandler := logging.NewRedactingHandler(newBaseHandler(cfg.Logging.Level), secretsSet.BotToken, secretsSet.LLMKey)
	logger := slog.New(redactingHandler)
	slog.SetDefault(logger)

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceVersion: "dev"})
	if err != nil {
		slog.Error("failed to initialize telemetry", "err", err)
		return 1
	}
	defer shutdownTelemetry(context.Background())
	metrics := observe.DefaultMetrics()

	whisperProvider, err := whisper.NewNative(cfg.Recognizer.Model, whisper.WithNativeLanguage(cfg.Recognizer.Language))
	if err != nil {
		slog.Error("failed to load recognition model", "err", errs.Config(err))
		return 1
	}
	defer whisperProvider.Close()
	transcriber := transcribe.New(whisperProvider, transcribe.Config{Language: cfg.Recognizer.Language})

	openaiProvider, err := openai.New(secretsSet.LLMKey, cfg.Generator.Model)
	if err != nil {
		slog.Error("failed to create LLM provider", "err", errs.Config(err))
		return 1
	}

	var llmProvider llm.Provider = openaiProvider
	if cfg.Generator.FallbackProvider != "" {
		var fallbackOpts []anyllmlib.Option
		if secretsSet.FallbackLLMKey != "" {
			fallbackOpts = append(fallbackOpts, anyllmlib.WithAPIKey(secretsSet.FallbackLLMKey))
		}
		fallbackProvider, err := anyllm.New(cfg.Generator.FallbackProvider, cfg.Generator.FallbackModel, fallbackOpts...)
		if err != nil {
			slog.Error("failed to create fallback LLM provider", "err", errs.Config(err))
			return 1
		}
		group := resilience.NewLLMFallback(openaiProvider, "openai", resilience.FallbackConfig{})
		group.AddFallback(cfg.Generator.FallbackProvider, fallbackProvider)
		llmProvider = group
	}

	generator, err := generate.New(llmProvider, generate.Config{
		Model:              cfg.Generator.Model,
		MaxTokens:          cfg.Generator.MaxTokens,
		Temperature:        cfg.Generator.Temperature,
		PromptTemplatePath: cfg.Generator.PromptTemplatePath,
		MaxRetries:         cfg.Generator.MaxRetries,
	})
	if err != nil {
		slog.Error("failed to load prompt template", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := discord.New(ctx, discord.Config{Token: secretsSet.BotToken})
	if err != nil {
		slog.Error("failed to connect to chat gateway", "err", errs.Config(err))
		return 1
	}
	defer bot.Close()

	publisher := publish.New(bot.Session(), publish.Config{
		OutputChannelID:    cfg.Chat.OutputChannelID,
		ErrorMentionRoleID: cfg.Chat.ErrorMentionRoleID,
		EmbedColor:         cfg.Publisher.EmbedColor,
		MaxEmbedLength:     cfg.Publisher.MaxEmbedLength,
		IncludeTranscript:  cfg.Publisher.IncludeTranscript,
	})

	newSource := func(handle model.RecordingHandle) source.AudioSource {
		return source.NewCookApiClient(http.DefaultClient, source.CookApiConfig{
			Format:          cfg.Source.Format,
			Container:       cfg.Source.Container,
			DownloadTimeout: time.Duration(cfg.Source.DownloadTimeoutSec) * time.Second,
			MaxRetries:      cfg.Source.MaxRetries,
		}, handle)
	}

	pl := pipeline.New(newSource, transcriber, merge.Config{GapMergeThresholdSec: cfg.Merger.GapMergeThresholdSec}, generator, publisher, pipeline.WithMetrics(metrics))
	orchestrator := pipeline.NewOrchestrator(pl, func(model.RecordingHandle) *publish.StatusLine {
		return publish.NewStatusLine(bot.Session(), cfg.Chat.OutputChannelID)
	})

	detector := panel.New(panel.Config{
		BotID:           cfg.Source.BotID,
		WatchChannelID:  cfg.Chat.WatchChannelID,
		DomainAllowlist: cfg.Source.DomainAllowlist,
	}, func(handle model.RecordingHandle) {
		redactingHandler.Add(handle.AccessKey)
		metrics.RecordTrigger(ctx, string(model.TriggerPanelEdit))
		orchestrator.Trigger(ctx, handle)
	})
	bot.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) { detector.Handle(s, m) })

	var watcher *drive.Watcher
	if cfg.Drive.Enabled {
		lister, err := drive.NewAPIFileLister(ctx, cfg.Drive.CredentialsFile)
		if err != nil {
			slog.Error("failed to start drive watcher", "err", errs.DriveWatch(err))
			return 1
		}
		processedSetPath := cfg.Drive.CredentialsFile + ".processed.json"
		processed, err := drive.LoadProcessedSet(processedSetPath)
		if err != nil {
			slog.Error("failed to load drive processed-set", "err", errs.DriveWatch(err))
			return 1
		}
		watcher = drive.New(lister, drive.Config{
			FolderID:     cfg.Drive.FolderID,
			PollInterval: time.Duration(cfg.Drive.PollIntervalSec) * time.Second,
		}, processed, func(handle model.RecordingHandle) error {
			metrics.RecordTrigger(ctx, string(model.TriggerDriveFile))
			return orchestrator.TriggerAndWait(ctx, handle)
		})
		go watcher.Run(ctx)
	}

	checkers := []health.Checker{
		{Name: "model loaded", Check: func(context.Context) error {
			if !whisperProvider.IsLoaded() {
				return errors.New("recognition model not loaded")
			}
			return nil
		}},
	}
	if watcher != nil {
		maxTickAge := time.Duration(3*cfg.Drive.PollIntervalSec) * time.Second
		checkers = append(checkers, health.Checker{Name: "drive watcher", Check: func(context.Context) error {
			last := watcher.LastTick()
			if last.IsZero() {
				return nil // first poll hasn't fired yet
			}
			if age := time.Since(last); age > maxTickAge {
				return fmt.Errorf("last tick %s ago exceeds %s", age.Round(time.Second), maxTickAge)
			}
			return nil
		}})
	}

	healthHandler := health.New(checkers...)
	mux := http.NewServeMux()
	healthHandler.Register(mux)
	healthServer := &http.Server{Addr: cfg.Health.ListenAddr, Handler: observe.Middleware(metrics)(mux)}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server stopped", "err", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: observe.Middleware(metrics)(metricsMux)}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "err", err)
		}
	}()

	slog.Info("minutes service ready", "watch_channel", cfg.Chat.WatchChannelID, "output_channel", cfg.Chat.OutputChannelID, "drive_enabled", cfg.Drive.Enabled)

	bot.Run(ctx)
	slog.Info("shutdown signal received, draining…")

	if watcher != nil {
		watcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	healthServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	for orchestrator.ActiveCount() > 0 {
		select {
		case <-shutdownCtx.Done():
			slog.Warn("shutdown grace period exceeded with pipelines still active", "active", orchestrator.ActiveCount())
			return 2
		case <-time.After(200 * time.Millisecond):
		}
	}

	slog.Info("goodbye")
	return 0
}

func newBaseHandler(level config.LogLevel) slog.Handler {
	var slogLevel slog.Level
	switch level {
	case config.LogDebug:
		slogLevel = slog.LevelDebug
	case config.LogWarn:
		slogLevel = slog.LevelWarn
	case config.LogError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
}
