// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-audio/wav"

	"github.com/junzi314/minutes/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const defaultLanguage = "en"

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP/network overhead entirely. The model is loaded
// once at startup and shared across every TranscribeFile call.
//
// whisper.cpp contexts are not safe for concurrent use, but the model
// itself is. accel serialises calls into the underlying accelerator (CPU
// thread pool or GPU) so that two tracks from the same recording never run
// inference at the same time; it does not limit how many callers may decode
// or queue concurrently, only how many run inside whisper.cpp at once.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	accel sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The model is loaded once and shared across every
// subsequent TranscribeFile call. The caller must call Close when the
// provider is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// IsLoaded reports whether the whisper.cpp model is loaded and ready to
// serve TranscribeFile calls. It is false only after Close has been called.
func (p *NativeProvider) IsLoaded() bool {
	return p.model != nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// TranscribeFile decodes the WAV file at path, runs it through whisper.cpp
// in a single batch pass, and returns its segments with native timing.
//
// Decoding happens outside the accelerator lock so that multiple tracks can
// be read and down-mixed concurrently; only the whisper.cpp context
// creation, Process call, and segment drain are serialised.
func (p *NativeProvider) TranscribeFile(ctx context.Context, path string, cfg stt.Config) ([]stt.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	samples, err := decodeWAVMono(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode %q: %w", path, err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	p.accel.Lock()
	defer p.accel.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context cancelled before inference: %w", err)
	}

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines; a fresh context per call keeps state from one track from
	// leaking into the next.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []stt.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		segments = append(segments, stt.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  text,
		})
	}

	return segments, nil
}

// decodeWAVMono reads a WAV file and returns its samples down-mixed to mono
// float32 in [-1.0, 1.0], the format whisper.cpp requires.
func decodeWAVMono(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM buffer: %w", err)
	}

	return intBufferToFloat32Mono(buf), nil
}
