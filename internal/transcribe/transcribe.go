// Package transcribe drives a batch STT provider over one recording's
// per-speaker audio tracks, in ascending track-index order.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/model"
	"github.com/junzi314/minutes/pkg/provider/stt"
)

// Config configures Transcriber.
type Config struct {
	// Language is passed through to the provider on every call.
	Language string
}

// Transcriber turns extracted audio tracks into per-speaker transcripts.
type Transcriber struct {
	provider stt.Provider
	cfg      Config
}

// New returns a Transcriber backed by provider.
func New(provider stt.Provider, cfg Config) *Transcriber {
	return &Transcriber{provider: provider, cfg: cfg}
}

// TranscribeAll transcribes every track in ascending TrackIndex order. The
// provider's accelerator lock (if any) already serialises concurrent
// inference, but ordering here is also an explicit contract: tracks are
// submitted one at a time, never in parallel, so that a single accelerator
// OOM on one track can be attributed to that track's position in the run.
//
// onTrackDone, if non-nil, is invoked after each track actually finishes
// transcription, with the 1-based completed count, the total track count,
// and the track just completed — callers drive a live status line off it
// rather than estimating progress up front.
//
// A failure on any track aborts the whole call; partial results are
// discarded.
func (t *Transcriber) TranscribeAll(ctx context.Context, tracks []model.AudioTrack, onTrackDone func(completed, total int, track model.AudioTrack)) ([]model.SpeakerTranscript, error) {
	if len(tracks) == 0 {
		return nil, errs.Transcription(errors.New("transcribe: no audio tracks to process"))
	}

	ordered := make([]model.AudioTrack, len(tracks))
	copy(ordered, tracks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Speaker.TrackIndex < ordered[j].Speaker.TrackIndex
	})

	results := make([]model.SpeakerTranscript, 0, len(ordered))
	for _, track := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, errs.Transcription(fmt.Errorf("transcribe: track %d: %w", track.Speaker.TrackIndex, err))
		}

		segments, err := t.provider.TranscribeFile(ctx, track.FilePath, stt.Config{Language: t.cfg.Language})
		if err != nil {
			if isOOM(err) {
				return nil, errs.AcceleratorOOMf("transcribe: track %d (%s): %v", track.Speaker.TrackIndex, track.Speaker.DisplayName, err)
			}
			return nil, errs.Transcription(fmt.Errorf("transcribe: track %d (%s): %w", track.Speaker.TrackIndex, track.Speaker.DisplayName, err))
		}

		modelSegments := make([]model.TranscriptSegment, len(segments))
		for i, s := range segments {
			modelSegments[i] = model.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text}
		}

		results = append(results, model.SpeakerTranscript{Speaker: track.Speaker, Segments: modelSegments})

		if onTrackDone != nil {
			onTrackDone(len(results), len(ordered), track)
		}
	}

	return results, nil
}

// oomIndicator is implemented by provider errors that can self-identify as
// an out-of-memory failure on the transcription accelerator.
type oomIndicator interface {
	AcceleratorOOM() bool
}

func isOOM(err error) bool {
	var oi oomIndicator
	if errors.As(err, &oi) {
		return oi.AcceleratorOOM()
	}
	return errors.Is(err, errs.ErrAcceleratorOOM)
}
