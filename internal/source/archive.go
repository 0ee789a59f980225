package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/junzi314/minutes/internal/model"
)

// entryPattern matches "{track_index}-{display_name}.{ext}" archive entry
// names. Entries not matching this pattern are skipped, per the archive
// format's "unknown entries are ignored" rule.
var entryPattern = regexp.MustCompile(`^(\d+)-(.+)\.([A-Za-z0-9]+)$`)

// plannedEntry is a validated archive entry ready to be written to disk.
type plannedEntry struct {
	file *zip.File
	dest string
	info model.SpeakerInfo
}

// ExtractArchive unpacks the zip archive at archivePath into dir, one file
// per entry matching entryPattern, and returns an AudioTrack per extracted
// file. Validation runs over every entry before anything is written: if any
// entry's resolved destination would escape dir, or the archive has zero
// valid entries, the whole archive is rejected and no file is written.
func ExtractArchive(archivePath, dir string) ([]model.AudioTrack, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("source: open archive: %w", err)
	}
	defer r.Close()

	var plan []plannedEntry
	for _, f := range r.File {
		// The escape check runs against the raw, un-cleaned entry name
		// before any pattern matching: a traversal attempt must be rejected
		// even if it would not otherwise match the track-entry convention.
		dest := filepath.Join(dir, f.Name)
		if !isWithinDir(dir, dest) {
			return nil, fmt.Errorf("source: entry %q escapes extraction directory", f.Name)
		}

		match := entryPattern.FindStringSubmatch(filepath.Base(f.Name))
		if match == nil {
			continue
		}

		trackIndex, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("source: entry %q: parse track index: %w", f.Name, err)
		}

		plan = append(plan, plannedEntry{
			file: f,
			dest: dest,
			info: model.SpeakerInfo{TrackIndex: uint32(trackIndex), DisplayName: match[2]},
		})
	}

	if len(plan) == 0 {
		return nil, errors.New("source: archive contains no valid track entries")
	}

	tracks := make([]model.AudioTrack, 0, len(plan))
	for _, p := range plan {
		if err := extractOne(p.file, p.dest); err != nil {
			return nil, fmt.Errorf("source: extract %q: %w", p.file.Name, err)
		}
		tracks = append(tracks, model.AudioTrack{Speaker: p.info, FilePath: p.dest})
	}
	return tracks, nil
}

func isWithinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func extractOne(f *zip.File, dest string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return nil
}
