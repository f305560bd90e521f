// Package codec inspects FLV video tag bodies: the keyframe flag, whether a
// tag is a codec sequence header, and the coded resolution carried by AVC,
// HEVC, and AV1 sequence headers. These are pure functions over bytes; they
// never mutate their input and never interpret picture data itself.
package codec

import "fmt"

// FrameType is the high nibble of an FLV video tag's first byte.
type FrameType uint8

// FLV video frame types.
const (
	FrameTypeKeyFrame          FrameType = 1
	FrameTypeInterFrame        FrameType = 2
	FrameTypeDisposableInter   FrameType = 3
	FrameTypeGeneratedKeyFrame FrameType = 4
	FrameTypeInfoCommand       FrameType = 5
)

// VideoCodecID is the low nibble of an FLV video tag's first byte.
type VideoCodecID uint8

// FLV video codec IDs relevant to sequence-header/resolution inspection.
const (
	CodecIDAVC  VideoCodecID = 7
	CodecIDHEVC VideoCodecID = 12 // enhanced-FLV HEVC
	CodecIDAV1  VideoCodecID = 13 // enhanced-FLV AV1
)

// PacketType is the second byte of an AVC/HEVC/AV1 video tag body.
type PacketType uint8

// AVC/HEVC/AV1 packet types; 0 always means sequence header (AVCDecoderConfigurationRecord
// or equivalent).
const (
	PacketTypeSequenceHeader PacketType = 0
	PacketTypeNALU           PacketType = 1
	PacketTypeEndOfSequence  PacketType = 2
)

// VideoTagHeader is the parsed first bytes of a video tag body, common to
// every codec this package understands.
type VideoTagHeader struct {
	FrameType  FrameType
	CodecID    VideoCodecID
	PacketType PacketType
	// BodyOffset is where codec-specific data begins after the header bytes
	// this function consumed (1 byte for legacy codecs without a packet
	// type, 5 bytes for AVC/HEVC including the composition time, 2 bytes
	// for AV1).
	BodyOffset int
}

// ErrPayloadTooShort is returned when a video tag body is too small to
// contain even its frame-type/codec-id byte.
var ErrPayloadTooShort = fmt.Errorf("codec: video payload too short")

// ParseVideoTagHeader decodes the frame type, codec ID, and (for codecs that
// carry one) the packet type from the start of a video tag body.
func ParseVideoTagHeader(payload []byte) (VideoTagHeader, error) {
	if len(payload) < 1 {
		return VideoTagHeader{}, ErrPayloadTooShort
	}
	first := payload[0]
	h := VideoTagHeader{
		FrameType:  FrameType(first >> 4),
		CodecID:    VideoCodecID(first & 0x0F),
		BodyOffset: 1,
	}
	switch h.CodecID {
	case CodecIDAVC, CodecIDHEVC:
		// Legacy AVCVIDEOPACKET/HEVCVIDEOPACKET layout: packet_type (1 byte),
		// then a 3-byte composition_time offset, before the decoder config
		// record or NALU stream begins.
		if len(payload) < 5 {
			return VideoTagHeader{}, ErrPayloadTooShort
		}
		h.PacketType = PacketType(payload[1])
		h.BodyOffset = 5
	case CodecIDAV1:
		// Enhanced-FLV AV1 packets carry no composition_time field.
		if len(payload) < 2 {
			return VideoTagHeader{}, ErrPayloadTooShort
		}
		h.PacketType = PacketType(payload[1])
		h.BodyOffset = 2
	}
	return h, nil
}

// IsKeyFrame reports whether an FLV video tag body carries a keyframe,
// per §4.C: frame_type 1 (key) or 4 (generated key, e.g. seek placeholders).
func IsKeyFrame(payload []byte) bool {
	h, err := ParseVideoTagHeader(payload)
	if err != nil {
		return false
	}
	return h.FrameType == FrameTypeKeyFrame || h.FrameType == FrameTypeGeneratedKeyFrame
}

// IsSequenceHeader reports whether payload is an AVC/HEVC/AV1 sequence
// header (configuration record) rather than picture data.
func IsSequenceHeader(payload []byte) bool {
	h, err := ParseVideoTagHeader(payload)
	if err != nil {
		return false
	}
	switch h.CodecID {
	case CodecIDAVC, CodecIDHEVC, CodecIDAV1:
		return h.PacketType == PacketTypeSequenceHeader
	default:
		return false
	}
}

// AudioFormat is the high nibble of an FLV audio tag's first byte.
type AudioFormat uint8

// AudioFormatAAC is the only FLV audio format that carries a sequence header.
const AudioFormatAAC AudioFormat = 10

// AACPacketType is the second byte of an AAC audio tag body.
type AACPacketType uint8

// AAC packet types; 0 means AudioSpecificConfig (sequence header).
const (
	AACPacketTypeSequenceHeader AACPacketType = 0
	AACPacketTypeRaw            AACPacketType = 1
)

// IsAudioSequenceHeader reports whether payload is an AAC AudioSpecificConfig
// (sequence header) rather than raw audio frame data. Non-AAC formats never
// carry a sequence header and always report false.
func IsAudioSequenceHeader(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	format := AudioFormat(payload[0] >> 4)
	if format != AudioFormatAAC {
		return false
	}
	return AACPacketType(payload[1]) == AACPacketTypeSequenceHeader
}

// Resolution is a decoded picture's coded dimensions in pixels.
type Resolution struct {
	Width, Height int
}

// ExtractResolution parses the codec-specific configuration record embedded
// in a sequence-header video tag body and returns its coded resolution.
// It returns an error if payload is not a recognized sequence header.
func ExtractResolution(payload []byte) (Resolution, error) {
	h, err := ParseVideoTagHeader(payload)
	if err != nil {
		return Resolution{}, err
	}
	if h.PacketType != PacketTypeSequenceHeader {
		return Resolution{}, fmt.Errorf("codec: payload is not a sequence header")
	}
	body := payload[h.BodyOffset:]
	switch h.CodecID {
	case CodecIDAVC:
		return resolutionFromAVCDecoderConfig(body)
	case CodecIDHEVC:
		return resolutionFromHEVCDecoderConfig(body)
	case CodecIDAV1:
		return resolutionFromAV1DecoderConfig(body)
	default:
		return Resolution{}, fmt.Errorf("codec: unsupported codec id %d", h.CodecID)
	}
}
