// Package stt defines the Provider interface for batch Speech-to-Text backends.
//
// Unlike a real-time streaming session, a batch Provider is handed a complete
// single-speaker audio file and returns every recognised segment in that
// file, each carrying its own start/end offset. This matches how the
// pipeline consumes per-track files extracted from a recording archive: one
// file in, one ordered list of timestamped segments out.
//
// Implementations must be safe for concurrent use across goroutines, but are
// not required to support concurrent *inference*: a provider backed by a
// single hardware accelerator typically serialises actual model calls behind
// its own internal lock and documents that contract explicitly.
package stt

import (
	"context"
	"time"
)

// Config carries recognition hints for a single TranscribeFile call.
type Config struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en", "de").
	// An empty string lets the provider fall back to its configured default.
	Language string
}

// Segment is a single recognised span of speech within an audio file.
type Segment struct {
	// Start is the offset of the segment's first recognised sample from the
	// start of the file.
	Start time.Duration

	// End is the offset of the segment's last recognised sample from the
	// start of the file. Always >= Start.
	End time.Duration

	// Text is the recognised text, trimmed of leading/trailing whitespace.
	// Providers drop empty segments before returning, so Text is never "".
	Text string
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use; multiple tracks from the
// same recording may be transcribed one after another by the same caller.
type Provider interface {
	// TranscribeFile recognises speech in the audio file at path and returns
	// its segments in non-decreasing Start order.
	//
	// Returns a wrapped error on a missing/corrupt file, an unsupported audio
	// format, or a backend failure. ctx cancellation aborts the call as soon
	// as the backend checks it; partial results are discarded.
	TranscribeFile(ctx context.Context, path string, cfg Config) ([]Segment, error)
}
