// Package mock provides a test double for stt.Provider.
//
// Use Provider to verify that callers request transcription with the
// expected path/Config and to feed back controlled Segment results without
// a live whisper.cpp model.
package mock

import (
	"context"
	"sync"

	"github.com/junzi314/minutes/pkg/provider/stt"
)

// TranscribeFileCall records a single invocation of Provider.TranscribeFile.
type TranscribeFileCall struct {
	Path string
	Cfg  stt.Config
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Segments is returned by every TranscribeFile call, unless Err is set.
	Segments []stt.Segment

	// Err, if non-nil, is returned as the error from TranscribeFile.
	Err error

	// Calls records every invocation of TranscribeFile, in order.
	Calls []TranscribeFileCall
}

// TranscribeFile records the call and returns p.Segments, p.Err.
func (p *Provider) TranscribeFile(_ context.Context, path string, cfg stt.Config) ([]stt.Segment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeFileCall{Path: path, Cfg: cfg})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Segments, nil
}

// CallCount returns the number of TranscribeFile calls recorded so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
