// Package errs defines the stage-tagged error taxonomy shared by every
// pipeline component. Callers wrap an underlying cause with [New] (or one of
// the Detection/Acquisition/... constructors) so that the orchestrator and
// the publisher's error embed can report which stage failed without
// resorting to string matching.
package errs

import (
	"errors"
	"fmt"
)

// Stage identifies which pipeline stage produced an error.
type Stage string

const (
	StageDetect      Stage = "detect"
	StageAcquire     Stage = "acquire"
	StageTranscribe  Stage = "transcribe"
	StageMerge       Stage = "merge"
	StageGenerate    Stage = "generate"
	StagePublish     Stage = "publish"
	StageConfig      Stage = "config"
	StageDriveWatch  Stage = "drive-watch"
)

// ErrAcquisitionTimeout is wrapped into an [Error] with [StageAcquire] when an
// acquisition attempt exhausts its configured timeout. Check for it with
// errors.Is, e.g. errors.Is(err, errs.ErrAcquisitionTimeout).
var ErrAcquisitionTimeout = errors.New("acquisition timed out")

// ErrAcceleratorOOM is wrapped into an [Error] with [StageTranscribe] when the
// transcription accelerator (GPU or CPU inference backend) runs out of
// memory processing a track. It is a distinct sentinel from a generic
// transcription failure because callers may want to retry with a smaller
// model or skip the track rather than fail the whole recording.
var ErrAcceleratorOOM = errors.New("transcription accelerator out of memory")

// Error wraps a cause with the pipeline stage it occurred in. It implements
// Unwrap so errors.Is/errors.As see through to the cause, and Is so that
// errors.Is(err, &Error{Stage: ...}) matches by stage; a target that also
// carries a Cause additionally requires the causes to match.
type Error struct {
	Stage Stage
	Cause error
}

// New returns an *Error tagging cause with stage. Returns nil if cause is nil.
func New(stage Stage, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Stage: stage, Cause: cause}
}

// Newf is like New but builds the cause with fmt.Errorf, so %w works against
// an already-wrapped error from a lower layer.
func Newf(stage Stage, format string, args ...any) error {
	return &Error{Stage: stage, Cause: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Stage. When target's
// Cause is non-nil, e's Cause must also match it under errors.Is; a target
// with a nil Cause matches on stage alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Cause != nil {
		return e.Stage == t.Stage && errors.Is(e.Cause, t.Cause)
	}
	return e.Stage == t.Stage
}

// Detection wraps cause as a panel/trigger detection failure.
func Detection(cause error) error { return New(StageDetect, cause) }

// Acquisition wraps cause as an archive-download/extraction failure.
func Acquisition(cause error) error { return New(StageAcquire, cause) }

// AcquisitionTimeoutf builds an acquisition error wrapping
// [ErrAcquisitionTimeout], formatted with additional context.
func AcquisitionTimeoutf(format string, args ...any) error {
	return &Error{Stage: StageAcquire, Cause: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrAcquisitionTimeout)}
}

// Transcription wraps cause as a speech-to-text failure.
func Transcription(cause error) error { return New(StageTranscribe, cause) }

// AcceleratorOOMf builds a transcription error wrapping [ErrAcceleratorOOM].
func AcceleratorOOMf(format string, args ...any) error {
	return &Error{Stage: StageTranscribe, Cause: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrAcceleratorOOM)}
}

// Merge wraps cause as a transcript-merge failure.
func Merge(cause error) error { return New(StageMerge, cause) }

// Generation wraps cause as an LLM minutes-generation failure.
func Generation(cause error) error { return New(StageGenerate, cause) }

// Publish wraps cause as a chat-publish failure.
func Publish(cause error) error { return New(StagePublish, cause) }

// Config wraps cause as a configuration-loading or validation failure.
func Config(cause error) error { return New(StageConfig, cause) }

// DriveWatch wraps cause as a drive-polling failure.
func DriveWatch(cause error) error { return New(StageDriveWatch, cause) }

// As attempts to extract the *Error from err, returning its Stage and true
// if err (or something it wraps) is a *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
