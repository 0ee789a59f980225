// Package drive watches a Google Drive folder for new recording-archive
// files and emits a RecordingHandle for each one not yet processed.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/model"
)

// archiveNamePattern matches the recording-archive filename convention on
// Drive: a recording id followed by the archive extension.
var archiveNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.zip$`)

// FileLister is the subset of the Drive API the watcher needs, so tests can
// substitute a fake without a live Drive account.
type FileLister interface {
	ListFiles(ctx context.Context, folderID string) ([]DriveFile, error)
}

// DriveFile is the subset of Drive file metadata the watcher inspects.
type DriveFile struct {
	ID   string
	Name string
}

// Config configures a Watcher.
type Config struct {
	FolderID     string
	PollInterval time.Duration
}

// Watcher polls a Drive folder on a ticker, identical in structure to the
// teacher's config file watcher (ticker + done channel + sync.Once Stop +
// callback invoked outside the lock), retargeted from "detect config file
// changes" to "detect new Drive files".
type Watcher struct {
	lister FileLister
	cfg    Config
	set    *ProcessedSet
	onFile func(model.RecordingHandle) error

	done     chan struct{}
	stopOnce sync.Once
	ticking  atomic.Bool
	lastTick atomic.Int64 // unix nanoseconds of the last completed tick; 0 before the first
}

// New creates a Watcher. onFile is invoked once per newly discovered file;
// its return value (success or terminal failure) determines whether the
// file id is recorded into set as processed — either outcome marks the
// file terminal, so it is never retried on a later tick.
func New(lister FileLister, cfg Config, set *ProcessedSet, onFile func(model.RecordingHandle) error) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Watcher{lister: lister, cfg: cfg, set: set, onFile: onFile, done: make(chan struct{})}
}

// Run blocks, polling until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// Stop halts polling. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// LastTick returns the time the most recently completed poll cycle
// finished, for use by a readiness checker watching for a stalled watcher.
// The zero Time is returned if no tick has completed yet.
func (w *Watcher) LastTick() time.Time {
	ns := w.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// tick runs one poll cycle. Overlap with a still-running tick is prevented
// by ticking, a simple in-flight flag (the watcher is single-threaded by
// design, so at most one tick is ever active).
func (w *Watcher) tick(ctx context.Context) {
	if !w.ticking.CompareAndSwap(false, true) {
		return
	}
	defer w.ticking.Store(false)
	defer w.lastTick.Store(time.Now().UnixNano())

	files, err := w.lister.ListFiles(ctx, w.cfg.FolderID)
	if err != nil {
		slog.Error("drive watcher: list files failed", "err", errs.DriveWatch(err))
		return
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		default:
		}

		if !archiveNamePattern.MatchString(f.Name) {
			continue
		}
		if w.set.Contains(f.ID) {
			continue
		}

		handle := model.RecordingHandle{
			RecordingID: recordingIDFromFilename(f.Name),
			DriveFileID: f.ID,
			TriggerKind: model.TriggerDriveFile,
		}

		err := w.onFile(handle)
		if err != nil {
			slog.Error("drive watcher: pipeline callback failed", "file_id", f.ID, "err", err)
		}
		// Success or terminal failure both mark the file as done — it is
		// never retried on a later tick.
		if addErr := w.set.Add(f.ID); addErr != nil {
			slog.Error("drive watcher: failed to persist processed set", "file_id", f.ID, "err", addErr)
		}
	}
}

func recordingIDFromFilename(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// apiFileLister is the production FileLister backed by the real Drive API.
type apiFileLister struct {
	svc *drive.Service
}

var _ FileLister = (*apiFileLister)(nil)

// NewAPIFileLister builds a FileLister using service-account credentials
// loaded from credentialsFile.
func NewAPIFileLister(ctx context.Context, credentialsFile string) (FileLister, error) {
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &apiFileLister{svc: svc}, nil
}

func (l *apiFileLister) ListFiles(ctx context.Context, folderID string) ([]DriveFile, error) {
	query := fmt.Sprintf("parents in '%s' and trashed = false", folderID)
	call := l.svc.Files.List().Context(ctx).Q(query).Fields("files(id, name)")

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("drive: list files: %w", err)
	}

	files := make([]DriveFile, len(res.Files))
	for i, f := range res.Files {
		files[i] = DriveFile{ID: f.Id, Name: f.Name}
	}
	return files, nil
}
