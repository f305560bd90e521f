// Package hls implements the HLS downloader/coordinator: playlist polling,
// a segment fetch pool with retry/backoff, AES-128-CBC decryption, and a
// coordinator that re-serializes fetch completions into strict
// media-sequence order.
package hls

import (
	"time"

	"github.com/strevio/strev/internal/bytesutil"
)

// SegmentKind distinguishes the HlsData payload kinds a consumer must
// branch on; Ts and M4sInit/M4sFragment map directly to how the output
// writer concatenates (TS) or frames (fMP4) segments into files.
type SegmentKind uint8

const (
	SegmentKindTS SegmentKind = iota
	SegmentKindM4sInit
	SegmentKindM4sFragment
	SegmentKindEndMarker
	SegmentKindDiscontinuity
)

// SegmentMeta describes one HLS media segment as scheduled from the
// playlist, independent of whether its fetch has completed.
type SegmentMeta struct {
	MediaSequenceNumber int64
	URI                 string
	Duration            time.Duration
	Discontinuity       bool
	IsAd                bool
}

// KeyInfo is the EXT-X-KEY state in effect for a segment.
type KeyInfo struct {
	Method string // "NONE" or "AES-128"
	URI    string
	IV     []byte // 16 bytes if present in the playlist, nil otherwise
}

// ScheduledSegmentJob is a unit of work pushed onto the fetcher's job queue
// by the poller.
type ScheduledSegmentJob struct {
	MediaSequenceNumber int64
	SegmentURI          string
	BaseURL             string
	KeyInfo             *KeyInfo
	IsInitSegment       bool
	IsFragment          bool
	Meta                SegmentMeta
}

// HlsData is the tagged union emitted downstream by the coordinator, in
// strict media-sequence order (permanently failed segments excepted).
type HlsData struct {
	Kind SegmentKind
	Meta SegmentMeta
	Body bytesutil.ByteView
}

func NewTsData(meta SegmentMeta, body []byte) HlsData {
	return HlsData{Kind: SegmentKindTS, Meta: meta, Body: body}
}

func NewInitData(meta SegmentMeta, body []byte) HlsData {
	return HlsData{Kind: SegmentKindM4sInit, Meta: meta, Body: body}
}

func NewFragmentData(meta SegmentMeta, body []byte) HlsData {
	return HlsData{Kind: SegmentKindM4sFragment, Meta: meta, Body: body}
}

func NewDiscontinuityData(meta SegmentMeta) HlsData {
	return HlsData{Kind: SegmentKindDiscontinuity, Meta: meta}
}

func EndMarker() HlsData { return HlsData{Kind: SegmentKindEndMarker} }
