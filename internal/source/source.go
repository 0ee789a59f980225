// Package source defines the AudioSource capability used to acquire a
// recording's per-speaker audio tracks, and a concrete implementation backed
// by the Cook-API over HTTP.
package source

import (
	"context"

	"github.com/junzi314/minutes/internal/model"
)

// AudioSource is the capability the pipeline needs from wherever a
// recording's audio actually lives. Implementations are bound to one
// RecordingHandle at construction time.
type AudioSource interface {
	// ListSpeakers returns the authoritative speaker metadata for the bound
	// recording. Fails with an AcquisitionFailure-class error if the
	// metadata cannot be obtained.
	ListSpeakers(ctx context.Context) ([]model.SpeakerInfo, error)

	// Fetch downloads and extracts the recording's speaker-track archive
	// into the directory into. Every returned AudioTrack's FilePath exists,
	// is readable, lies under into, and corresponds to exactly one
	// SpeakerInfo from ListSpeakers. Fails with an AcquisitionFailure-class
	// error on transport, format, or mapping errors, or with an
	// AcquisitionTimeout-class error if the bounded deadline expires.
	Fetch(ctx context.Context, into string) ([]model.AudioTrack, error)
}
