// Package merge flattens per-speaker transcripts into one chronological,
// human-readable transcript.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/junzi314/minutes/internal/model"
)

// Config configures the Merge function.
type Config struct {
	// GapMergeThresholdSec is the gap, in seconds, that two consecutive
	// same-speaker segments must be strictly below for them to be coalesced
	// into one line. A value of 0 disables coalescing.
	GapMergeThresholdSec float64
}

// line is one (speaker, segment) pair surviving flattening, used internally
// for sorting and coalescing before formatting.
type line struct {
	trackIndex uint32
	name       string
	startSec   float64
	endSec     float64
	text       string
}

// Merge flattens transcripts into pairs, sorts them chronologically, and
// optionally coalesces consecutive same-speaker segments, returning the
// formatted transcript with one "[MM:SS] name: text" line per survivor
// joined by newlines. Fails only when transcripts contains no non-empty
// segments.
func Merge(transcripts []model.SpeakerTranscript, cfg Config) (string, error) {
	lines := flatten(transcripts)
	if len(lines) == 0 {
		return "", errors.New("merge: no non-empty segments to merge")
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].startSec != lines[j].startSec {
			return lines[i].startSec < lines[j].startSec
		}
		return lines[i].trackIndex < lines[j].trackIndex
	})

	lines = coalesce(lines, cfg.GapMergeThresholdSec)

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = formatLine(l)
	}
	return strings.Join(out, "\n"), nil
}

func flatten(transcripts []model.SpeakerTranscript) []line {
	var lines []line
	for _, t := range transcripts {
		for _, seg := range t.Segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			lines = append(lines, line{
				trackIndex: t.Speaker.TrackIndex,
				name:       t.Speaker.DisplayName,
				startSec:   seg.Start.Seconds(),
				endSec:     seg.End.Seconds(),
				text:       text,
			})
		}
	}
	return lines
}

// coalesce merges consecutive same-speaker lines whose gap is strictly less
// than threshold. A threshold of 0 disables coalescing entirely.
func coalesce(lines []line, threshold float64) []line {
	if threshold <= 0 || len(lines) < 2 {
		return lines
	}

	out := make([]line, 0, len(lines))
	cur := lines[0]
	for _, next := range lines[1:] {
		gap := next.startSec - cur.endSec
		if next.trackIndex == cur.trackIndex && gap < threshold {
			cur.text = cur.text + " " + next.text
			if next.endSec > cur.endSec {
				cur.endSec = next.endSec
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	out = append(out, cur)
	return out
}

func formatLine(l line) string {
	minutes := int(l.startSec) / 60
	seconds := int(l.startSec) % 60
	return fmt.Sprintf("[%02d:%02d] %s: %s", minutes, seconds, l.name, l.text)
}
