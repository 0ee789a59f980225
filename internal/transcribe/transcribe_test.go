package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/model"
	"github.com/junzi314/minutes/pkg/provider/stt"
)

// orderingProvider records the order in which tracks are transcribed and can
// be configured to fail on a specific call.
type orderingProvider struct {
	seen    []string
	failOn  string
	failErr error
}

func (p *orderingProvider) TranscribeFile(_ context.Context, path string, _ stt.Config) ([]stt.Segment, error) {
	p.seen = append(p.seen, path)
	if path == p.failOn {
		return nil, p.failErr
	}
	return []stt.Segment{{Start: 0, End: time.Second, Text: "hi from " + path}}, nil
}

func tracks() []model.AudioTrack {
	return []model.AudioTrack{
		{Speaker: model.SpeakerInfo{TrackIndex: 3, DisplayName: "Carol"}, FilePath: "carol.wav"},
		{Speaker: model.SpeakerInfo{TrackIndex: 1, DisplayName: "Alice"}, FilePath: "alice.wav"},
		{Speaker: model.SpeakerInfo{TrackIndex: 2, DisplayName: "Bob"}, FilePath: "bob.wav"},
	}
}

func TestTranscribeAll_OrdersByAscendingTrackIndex(t *testing.T) {
	provider := &orderingProvider{}
	tr := New(provider, Config{Language: "en"})

	var progress [][2]int
	var names []string
	onTrackDone := func(completed, total int, track model.AudioTrack) {
		progress = append(progress, [2]int{completed, total})
		names = append(names, track.Speaker.DisplayName)
	}

	results, err := tr.TranscribeAll(context.Background(), tracks(), onTrackDone)
	if err != nil {
		t.Fatalf("TranscribeAll: %v", err)
	}

	want := []string{"alice.wav", "bob.wav", "carol.wav"}
	for i, w := range want {
		if provider.seen[i] != w {
			t.Errorf("call order[%d] = %q, want %q", i, provider.seen[i], w)
		}
	}
	if len(results) != 3 || results[0].Speaker.DisplayName != "Alice" {
		t.Errorf("unexpected results: %+v", results)
	}

	wantNames := []string{"Alice", "Bob", "Carol"}
	for i, w := range wantNames {
		if names[i] != w {
			t.Errorf("onTrackDone order[%d] = %q, want %q", i, names[i], w)
		}
		if progress[i][0] != i+1 || progress[i][1] != 3 {
			t.Errorf("onTrackDone progress[%d] = %v, want [%d 3]", i, progress[i], i+1)
		}
	}
}

func TestTranscribeAll_NoTracksIsError(t *testing.T) {
	tr := New(&orderingProvider{}, Config{})
	_, err := tr.TranscribeAll(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected an error for zero tracks")
	}
}

func TestTranscribeAll_ProviderFailureStopsProcessing(t *testing.T) {
	provider := &orderingProvider{failOn: "bob.wav", failErr: errors.New("decode error")}
	tr := New(provider, Config{})

	_, err := tr.TranscribeAll(context.Background(), tracks(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(provider.seen) != 2 {
		t.Errorf("expected processing to stop after the failing track, saw %d calls", len(provider.seen))
	}
}

type oomError struct{}

func (oomError) Error() string        { return "CUDA out of memory" }
func (oomError) AcceleratorOOM() bool { return true }

func TestTranscribeAll_OOMIsSurfacedViaInterface(t *testing.T) {
	provider := &orderingProvider{failOn: "alice.wav", failErr: oomError{}}
	tr := New(provider, Config{})

	_, err := tr.TranscribeAll(context.Background(), tracks(), nil)
	if !errors.Is(err, errs.ErrAcceleratorOOM) {
		t.Errorf("expected ErrAcceleratorOOM, got %v", err)
	}
}

func TestTranscribeAll_OOMIsSurfacedViaSentinel(t *testing.T) {
	provider := &orderingProvider{failOn: "alice.wav", failErr: errs.ErrAcceleratorOOM}
	tr := New(provider, Config{})

	_, err := tr.TranscribeAll(context.Background(), tracks(), nil)
	if !errors.Is(err, errs.ErrAcceleratorOOM) {
		t.Errorf("expected ErrAcceleratorOOM, got %v", err)
	}
}

func TestTranscribeAll_ContextCancelledBeforeTrack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New(&orderingProvider{}, Config{})
	_, err := tr.TranscribeAll(ctx, tracks(), nil)
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
