// Package flvpipeline implements the FLV repair/segmentation stages: a
// fixed-order chain of pipeline.Processor[flv.Data] that turns a raw,
// possibly-corrupt tag stream into a sequence of clean, correctly-timed,
// size/duration-bounded FLV files.
package flvpipeline

import "fmt"

// ErrFatalMissingHeader is returned by the header-check stage when the
// stream starts with tag data and synthetic-header generation is disabled.
type ErrFatalMissingHeader struct{}

func (e *ErrFatalMissingHeader) Error() string {
	return "flvpipeline: stream has no FLV header and synth_header is disabled"
}

// ErrTimestampBackwards is returned by the timing-repair stage under the
// "strict" strategy when a tag's timestamp regresses.
type ErrTimestampBackwards struct {
	Previous, Got uint32
}

func (e *ErrTimestampBackwards) Error() string {
	return fmt.Sprintf("flvpipeline: timestamp went backwards: %d -> %d", e.Previous, e.Got)
}

// ErrLimitExceeded is returned by the limit stage once an absolute byte or
// duration ceiling is reached without split ever finding a keyframe to cut
// at; it terminates the run rather than growing the current file forever.
type ErrLimitExceeded struct {
	Reason string // "bytes" or "duration"
	Limit  int64
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("flvpipeline: absolute %s limit of %d exceeded with no keyframe to split at", e.Reason, e.Limit)
}
