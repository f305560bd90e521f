package hls

import "fmt"

// SegmentFetchError is surfaced exactly once per permanently-failed segment
// (retries exhausted), after which the coordinator skips its sequence
// number rather than blocking forever.
type SegmentFetchError struct {
	MediaSequenceNumber int64
	Cause               error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("hls: segment %d fetch failed: %v", e.MediaSequenceNumber, e.Cause)
}

func (e *SegmentFetchError) Unwrap() error { return e.Cause }

// DecryptionError wraps a segment decryption failure: bad key length, wrong
// padding, or a key that could not be fetched.
type DecryptionError struct {
	MediaSequenceNumber int64
	Cause               error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("hls: segment %d decryption failed: %v", e.MediaSequenceNumber, e.Cause)
}

func (e *DecryptionError) Unwrap() error { return e.Cause }

// PlaylistParseError wraps a malformed playlist document.
type PlaylistParseError struct {
	Msg string
}

func (e *PlaylistParseError) Error() string { return "hls: playlist parse error: " + e.Msg }

// StallWarning is not an error in the fatal sense; it is logged when the
// playlist has not advanced for several consecutive polls.
type StallWarning struct {
	ConsecutiveStalePolls int
}

func (e *StallWarning) Error() string {
	return fmt.Sprintf("hls: playlist stalled for %d consecutive polls", e.ConsecutiveStalePolls)
}
