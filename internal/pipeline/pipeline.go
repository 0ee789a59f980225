// Package pipeline orchestrates one recording end to end: acquire, extract,
// transcribe, merge, generate, publish.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/generate"
	"github.com/junzi314/minutes/internal/merge"
	"github.com/junzi314/minutes/internal/model"
	"github.com/junzi314/minutes/internal/observe"
	"github.com/junzi314/minutes/internal/publish"
	"github.com/junzi314/minutes/internal/source"
	"github.com/junzi314/minutes/internal/transcribe"
)

// SourceFactory builds an AudioSource bound to one RecordingHandle.
type SourceFactory func(handle model.RecordingHandle) source.AudioSource

// Pipeline runs the fixed acquire -> transcribe -> merge -> generate -> post
// sequence for one recording. Structured like the teacher's app.App: a
// functional-options constructor for collaborator injection, private stage
// helpers (recordStage, fail), and deferred temp-root cleanup.
type Pipeline struct {
	newSource   SourceFactory
	transcriber *transcribe.Transcriber
	mergeCfg    merge.Config
	generator   *generate.Generator
	publisher   *publish.Publisher
	tempRoot    string

	metrics *observe.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempRoot overrides the base directory under which per-run temp
// directories are created. Defaults to os.TempDir().
func WithTempRoot(dir string) Option {
	return func(p *Pipeline) { p.tempRoot = dir }
}

// WithMetrics attaches a metrics recorder for per-stage durations.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New returns a Pipeline. newSource, transcriber, generator, and publisher
// are required collaborators.
func New(newSource SourceFactory, transcriber *transcribe.Transcriber, mergeCfg merge.Config, generator *generate.Generator, publisher *publish.Publisher, opts ...Option) *Pipeline {
	p := &Pipeline{
		newSource:   newSource,
		transcriber: transcriber,
		mergeCfg:    mergeCfg,
		generator:   generator,
		publisher:   publisher,
		tempRoot:    os.TempDir(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the full pipeline for handle, driving status (if non-nil)
// through the fixed vocabulary at each stage transition. It never panics:
// any stage failure is logged and reported via the publisher's error embed
// rather than propagated through a panic, so callers can safely fire Run
// with a bare `go` statement and never need to recover from it. Its error
// return reports the terminal outcome (nil on success) for callers — such
// as the Drive Watcher — that must not mark a recording processed before
// Run has actually finished.
func (p *Pipeline) Run(ctx context.Context, handle model.RecordingHandle, status *publish.StatusLine) error {
	start := time.Now()
	tempDir, err := os.MkdirTemp(p.tempRoot, fmt.Sprintf("minutes-%s-*", sanitizeForPath(handle.RecordingID)))
	if err != nil {
		ferr := errs.Acquisition(fmt.Errorf("pipeline: create temp root: %w", err))
		p.fail(handle, "acquire", ferr, status)
		return ferr
	}
	defer os.RemoveAll(tempDir)

	if status != nil {
		status.Update(publish.Downloading())
	}

	src := p.newSource(handle)

	speakers, err := src.ListSpeakers(ctx)
	if err != nil {
		p.fail(handle, "acquire", err, status)
		return err
	}

	acquireStart := time.Now()
	tracks, err := src.Fetch(ctx, tempDir)
	p.recordStage(ctx, "acquire", time.Since(acquireStart))
	if err != nil {
		p.fail(handle, "acquire", err, status)
		return err
	}
	_ = speakers // speaker list is informational; track metadata comes from the archive itself

	transcripts, err := p.transcribeAll(ctx, tracks, status)
	if err != nil {
		p.fail(handle, "transcribing", err, status)
		return err
	}

	if status != nil {
		status.Update(publish.Generating())
	}
	mergeStart := time.Now()
	transcript, err := merge.Merge(transcripts, p.mergeCfg)
	p.recordStage(ctx, "merge", time.Since(mergeStart))
	if err != nil {
		ferr := errs.Merge(err)
		p.fail(handle, "merge", ferr, status)
		return ferr
	}

	generateStart := time.Now()
	minutes, err := p.generator.Generate(ctx, transcript)
	p.recordStage(ctx, "generate", time.Since(generateStart))
	if err != nil {
		p.fail(handle, "generate", err, status)
		return err
	}

	if status != nil {
		status.Update(publish.Posting())
	}
	postStart := time.Now()
	err = p.publisher.PostFinal(publish.Result{
		RecordingID:  handle.RecordingID,
		Minutes:      minutes,
		Summary:      extractSummary(minutes),
		Participants: participantNames(transcripts),
		Duration:     time.Since(start),
		Transcript:   transcript,
		PostedAt:     time.Now(),
	})
	p.recordStage(ctx, "publish", time.Since(postStart))
	if err != nil {
		p.fail(handle, "publish", err, status)
		return err
	}

	if status != nil {
		status.Update(publish.Complete(time.Since(start)))
	}
	return nil
}

func (p *Pipeline) transcribeAll(ctx context.Context, tracks []model.AudioTrack, status *publish.StatusLine) ([]model.SpeakerTranscript, error) {
	var onTrackDone func(completed, total int, track model.AudioTrack)
	if status != nil {
		onTrackDone = func(completed, total int, track model.AudioTrack) {
			status.Update(publish.Transcribing(completed, total, track.Speaker.DisplayName))
		}
	}

	start := time.Now()
	transcripts, err := p.transcriber.TranscribeAll(ctx, tracks, onTrackDone)
	p.recordStage(ctx, "transcribe", time.Since(start))
	return transcripts, err
}

func (p *Pipeline) recordStage(ctx context.Context, stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordStageDuration(ctx, stage, d.Seconds())
	}
}

func (p *Pipeline) fail(handle model.RecordingHandle, stage string, err error, status *publish.StatusLine) {
	slog.Error("pipeline: stage failed", "recording_id", handle.RecordingID, "stage", stage, "err", err)
	if status != nil {
		status.Update(publish.Failed(stage))
	}
	if p.publisher != nil {
		p.publisher.PostError(stage, handle.RecordingID, err)
	}
}

func sanitizeForPath(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "recording"
	}
	return b.String()
}

func participantNames(transcripts []model.SpeakerTranscript) []string {
	names := make([]string, len(transcripts))
	for i, t := range transcripts {
		names[i] = t.Speaker.DisplayName
	}
	return names
}

// extractSummary pulls the body text under the "## Summary" heading out of
// the generated minutes markdown, for use as the final embed's description.
func extractSummary(minutes model.Minutes) string {
	lines := strings.Split(string(minutes), "\n")
	var summary []string
	inSummary := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			inSummary = strings.EqualFold(strings.TrimLeft(trimmed, "# "), "Summary")
			continue
		}
		if inSummary {
			summary = append(summary, line)
		}
	}
	return strings.TrimSpace(strings.Join(summary, "\n"))
}

// Orchestrator owns the active-recording-id set shared across both trigger
// sources (panel detector, drive watcher) and the status-line factory, so
// that a pipeline run can be fired with just a RecordingHandle.
type Orchestrator struct {
	pipeline  *Pipeline
	newStatus func(handle model.RecordingHandle) *publish.StatusLine

	mu     sync.Mutex
	active map[string]bool
}

// NewOrchestrator returns an Orchestrator wrapping pipeline. newStatus
// builds a fresh StatusLine for each run (e.g. bound to the output channel).
func NewOrchestrator(pipeline *Pipeline, newStatus func(handle model.RecordingHandle) *publish.StatusLine) *Orchestrator {
	return &Orchestrator{pipeline: pipeline, newStatus: newStatus, active: map[string]bool{}}
}

// Trigger starts a pipeline run for handle in its own goroutine, unless a
// run for the same recording id is already active, in which case it is
// discarded with an informational log. Fire-and-forget is acceptable here
// because the panel detector keeps no durable record of what it has already
// triggered — losing track of an in-flight run on process restart is an
// accepted tradeoff for that trigger source.
func (o *Orchestrator) Trigger(ctx context.Context, handle model.RecordingHandle) {
	if !o.claim(handle.RecordingID) {
		return
	}
	go func() {
		defer o.release(handle.RecordingID)
		var status *publish.StatusLine
		if o.newStatus != nil {
			status = o.newStatus(handle)
		}
		o.pipeline.Run(ctx, handle, status)
	}()
}

// TriggerAndWait runs the pipeline for handle synchronously, returning only
// once the run has reached a terminal outcome (success or failure — the
// pipeline never leaves a run unresolved). Callers that must not record a
// source item as handled before the work actually completes — such as the
// Drive Watcher, whose onFile callback contract requires exactly that —
// use this instead of Trigger. A duplicate trigger for an already-active
// recording id is discarded and reported as success, matching Trigger's
// discard behavior.
func (o *Orchestrator) TriggerAndWait(ctx context.Context, handle model.RecordingHandle) error {
	if !o.claim(handle.RecordingID) {
		return nil
	}
	defer o.release(handle.RecordingID)

	var status *publish.StatusLine
	if o.newStatus != nil {
		status = o.newStatus(handle)
	}
	return o.pipeline.Run(ctx, handle, status)
}

// claim marks recordingID active, returning false if it was already active.
func (o *Orchestrator) claim(recordingID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[recordingID] {
		slog.Info("pipeline: duplicate trigger discarded", "recording_id", recordingID)
		return false
	}
	o.active[recordingID] = true
	return true
}

func (o *Orchestrator) release(recordingID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, recordingID)
}

// ActiveCount reports how many recordings currently have a pipeline run in
// flight. Used by tests and graceful-shutdown draining.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}
