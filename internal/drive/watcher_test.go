package drive

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/junzi314/minutes/internal/model"
)

type fakeLister struct {
	files []DriveFile
	err   error
	calls atomic.Int32
}

func (f *fakeLister) ListFiles(ctx context.Context, folderID string) ([]DriveFile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func TestWatcher_EmitsHandleForNewFile(t *testing.T) {
	lister := &fakeLister{files: []DriveFile{{ID: "abc", Name: "rec-123.zip"}}}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))

	var got model.RecordingHandle
	called := make(chan struct{}, 1)
	w := New(lister, Config{PollInterval: 5 * time.Millisecond}, set, func(h model.RecordingHandle) error {
		got = h
		called <- struct{}{}
		return nil
	})

	w.tick(context.Background())

	select {
	case <-called:
	default:
		t.Fatal("expected callback to be invoked")
	}
	if got.DriveFileID != "abc" || got.TriggerKind != model.TriggerDriveFile || got.RecordingID != "rec-123" {
		t.Errorf("handle = %+v", got)
	}
	if !set.Contains("abc") {
		t.Error("expected file id to be recorded as processed")
	}
}

func TestWatcher_SkipsAlreadyProcessed(t *testing.T) {
	lister := &fakeLister{files: []DriveFile{{ID: "abc", Name: "rec-123.zip"}}}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))
	_ = set.Add("abc")

	calls := 0
	w := New(lister, Config{}, set, func(h model.RecordingHandle) error {
		calls++
		return nil
	})
	w.tick(context.Background())

	if calls != 0 {
		t.Errorf("callback called %d times, want 0", calls)
	}
}

func TestWatcher_SkipsNonMatchingFilenames(t *testing.T) {
	lister := &fakeLister{files: []DriveFile{{ID: "x", Name: "notes.txt"}}}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))

	calls := 0
	w := New(lister, Config{}, set, func(h model.RecordingHandle) error {
		calls++
		return nil
	})
	w.tick(context.Background())

	if calls != 0 {
		t.Errorf("callback called %d times, want 0 for a non-archive filename", calls)
	}
}

func TestWatcher_MarksFileProcessedEvenOnCallbackFailure(t *testing.T) {
	lister := &fakeLister{files: []DriveFile{{ID: "abc", Name: "rec-1.zip"}}}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))

	w := New(lister, Config{}, set, func(h model.RecordingHandle) error {
		return errors.New("pipeline failed")
	})
	w.tick(context.Background())

	if !set.Contains("abc") {
		t.Error("expected file id to be recorded as processed even though the callback failed")
	}
}

func TestWatcher_ListErrorDoesNotPanicOrMarkProcessed(t *testing.T) {
	lister := &fakeLister{err: errors.New("drive api down")}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))

	calls := 0
	w := New(lister, Config{}, set, func(h model.RecordingHandle) error {
		calls++
		return nil
	})
	w.tick(context.Background())

	if calls != 0 {
		t.Errorf("callback called %d times, want 0 when listing fails", calls)
	}
}

func TestWatcher_OverlappingTicksAreSkipped(t *testing.T) {
	lister := &fakeLister{files: []DriveFile{{ID: "abc", Name: "rec-1.zip"}}}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))

	w := New(lister, Config{}, set, func(h model.RecordingHandle) error { return nil })
	w.ticking.Store(true)
	w.tick(context.Background())

	if lister.calls.Load() != 0 {
		t.Error("expected tick to be skipped while one is already in progress")
	}
}

func TestWatcher_RunStopsOnStop(t *testing.T) {
	lister := &fakeLister{}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))
	w := New(lister, Config{PollInterval: time.Millisecond}, set, func(h model.RecordingHandle) error { return nil })

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	w.Stop()
	w.Stop() // must be safe to call twice

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestWatcher_LastTickUpdatesAfterEachCycle(t *testing.T) {
	lister := &fakeLister{files: []DriveFile{{ID: "abc", Name: "rec-1.zip"}}}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))
	w := New(lister, Config{}, set, func(h model.RecordingHandle) error { return nil })

	if !w.LastTick().IsZero() {
		t.Error("expected zero LastTick before any tick has run")
	}

	w.tick(context.Background())

	if w.LastTick().IsZero() {
		t.Error("expected a non-zero LastTick after a completed tick")
	}
	if time.Since(w.LastTick()) > time.Second {
		t.Error("expected LastTick to be recent")
	}
}

func TestWatcher_RunStopsOnContextCancel(t *testing.T) {
	lister := &fakeLister{}
	set, _ := LoadProcessedSet(filepath.Join(t.TempDir(), "processed.json"))
	w := New(lister, Config{PollInterval: time.Millisecond}, set, func(h model.RecordingHandle) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
