// Package model holds the data types that flow through the minutes
// pipeline, from trigger detection through to the published result.
package model

import "time"

// TriggerKind identifies what caused a RecordingHandle to be created.
type TriggerKind string

const (
	TriggerPanelEdit TriggerKind = "panel-edit"
	TriggerDriveFile TriggerKind = "drive-file"
)

// RecordingHandle identifies one recording to acquire and process. It is
// created by a detector or watcher, passed by value through the pipeline,
// and never mutated.
type RecordingHandle struct {
	RecordingID     string
	AccessKey       string
	OriginChannelID uint64
	TriggerKind     TriggerKind

	// DriveFileID is set only when TriggerKind is TriggerDriveFile.
	DriveFileID string
}

// SpeakerInfo identifies one participant's audio track. TrackIndex is unique
// within a recording and starts at 1.
type SpeakerInfo struct {
	TrackIndex  uint32
	DisplayName string
	UserID      uint64
}

// AudioTrack is one speaker's audio file, extracted into the pipeline's
// temp root. The file is valid only until that temp root is released.
type AudioTrack struct {
	Speaker  SpeakerInfo
	FilePath string
}

// TranscriptSegment is one recognised span of speech.
//
// Invariant: 0 <= Start <= End.
type TranscriptSegment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// SpeakerTranscript is one speaker's segments, in non-decreasing Start order.
type SpeakerTranscript struct {
	Speaker  SpeakerInfo
	Segments []TranscriptSegment
}

// Minutes is the markdown document produced by the Generator, with fixed
// top-level headings: Summary, Agenda, Discussion, Decisions, Action Items,
// Risks.
type Minutes string

// PipelineResult summarises one completed pipeline invocation.
type PipelineResult struct {
	RecordingID       string
	SpeakerCount      int
	TotalAudioSeconds float64
	StageDurations    map[string]time.Duration
	PostedMessageIDs  []uint64
}
