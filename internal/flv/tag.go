// Package flv parses and represents the FLV container: a 9-byte header
// followed by a stream of timestamped audio/video/script tags.
package flv

import (
	"github.com/strevio/strev/internal/bytesutil"
	"github.com/strevio/strev/internal/codec"
)

// TagType identifies the payload kind carried by a Tag.
type TagType uint8

// FLV tag type bytes, per the Adobe FLV 10.1 spec.
const (
	TagTypeAudio  TagType = 8
	TagTypeVideo  TagType = 9
	TagTypeScript TagType = 18
)

// String renders the tag type name for logging.
func (t TagType) String() string {
	switch t {
	case TagTypeAudio:
		return "audio"
	case TagTypeVideo:
		return "video"
	case TagTypeScript:
		return "script"
	default:
		return "unknown"
	}
}

// Header is the 9-byte FLV file header. It is immutable once parsed and
// cloned verbatim into every output file the writer opens.
type Header struct {
	Version    uint8
	HasAudio   bool
	HasVideo   bool
	DataOffset uint32
}

// Tag is one audio, video, or script unit read from the stream. Payload is
// a zero-copy view into the buffer the demuxer read it from.
type Tag struct {
	Type      TagType
	Timestamp uint32 // milliseconds, unsigned per §4.B (ts_hi<<24 | ts_lo)
	StreamID  uint32 // always 0 in practice, carried for fidelity
	Payload   bytesutil.ByteView
}

// Size is the on-disk footprint of the tag: 11-byte header + payload +
// 4-byte previous-tag-size trailer.
func (t Tag) Size() int {
	return 11 + len(t.Payload) + 4
}

// DataKind tags a FlvData value as one of Header, Tag, or EndOfSequence.
type DataKind uint8

// FlvData discriminants.
const (
	DataKindHeader DataKind = iota
	DataKindTag
	DataKindEndOfSequence
)

// Data is the tagged union flowing through the FLV pipeline:
// {Header | Tag | EndOfSequence}. EndOfSequence carries an arbitrary byte
// marker so upstreams can attach a reason without a separate error channel.
type Data struct {
	Kind   DataKind
	Header Header
	Tag    Tag
	Marker bytesutil.ByteView
}

// NewHeaderData wraps h as a Header Data item.
func NewHeaderData(h Header) Data { return Data{Kind: DataKindHeader, Header: h} }

// NewTagData wraps t as a Tag Data item.
func NewTagData(t Tag) Data { return Data{Kind: DataKindTag, Tag: t} }

// NewEndOfSequence constructs an EndOfSequence Data item carrying marker.
func NewEndOfSequence(marker bytesutil.ByteView) Data {
	return Data{Kind: DataKindEndOfSequence, Marker: marker}
}

// Size mirrors Data.size() from the data model: Header is the fixed 9 bytes,
// Tag delegates to Tag.Size, EndOfSequence carries no on-disk footprint.
func (d Data) Size() int {
	switch d.Kind {
	case DataKindHeader:
		return 9
	case DataKindTag:
		return d.Tag.Size()
	default:
		return 0
	}
}

// IsKeyFrame reports whether d is a video tag carrying a keyframe.
func (d Data) IsKeyFrame() bool {
	if d.Kind != DataKindTag || d.Tag.Type != TagTypeVideo {
		return false
	}
	return codec.IsKeyFrame(d.Tag.Payload)
}
