package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strevio/strev/internal/bytesutil"
)

// h264SPS and h265SPS are real SPS NAL units (header byte(s) included, as
// gortsplib/mediamtx pass them to mediacommon's SPS.Unmarshal).
var (
	h264SPS = []byte{
		0x67, 0x64, 0x00, 0x0c, 0xac, 0x3b, 0x50, 0xb0,
		0x4b, 0x42, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00,
		0x00, 0x03, 0x00, 0x3d, 0x08,
	}
	h264PPS = []byte{0x68, 0xee, 0x3c, 0x80}

	h265SPS = []byte{
		0x42, 0x01, 0x01, 0x01, 0x40, 0x00, 0x00, 0x03,
		0x00, 0x00, 0x03, 0x00, 0x00, 0x03, 0x00, 0x00,
		0x03, 0x00, 0x7b, 0xa0, 0x03, 0xc0, 0x80, 0x11,
		0x07, 0xcb, 0x96, 0xb4, 0xa4, 0x25, 0x92, 0xe3,
		0x01, 0x6a, 0x02, 0x02, 0x02, 0x08, 0x00, 0x00,
		0x03, 0x00, 0x08, 0x00, 0x00, 0x03, 0x01, 0xe3,
		0x00, 0x2e, 0xf2, 0x88, 0x00, 0x09, 0x89, 0x60,
		0x00, 0x04, 0xc4, 0xb4, 0x20,
	}
)

func be16(v int) []byte { return []byte{byte(v >> 8), byte(v)} }

func buildAVCDecoderConfig(sps, pps []byte) []byte {
	var rec []byte
	rec = append(rec, 1, sps[1], sps[2], sps[3], 0xFF, 0xE1)
	rec = append(rec, be16(len(sps))...)
	rec = append(rec, sps...)
	rec = append(rec, 1)
	rec = append(rec, be16(len(pps))...)
	rec = append(rec, pps...)
	return rec
}

func buildHEVCDecoderConfig(sps []byte) []byte {
	prologue := make([]byte, 22)
	prologue[21] = 1 // numTemporalLayers/lengthSizeMinusOne byte, value unused by parser
	rec := append([]byte{}, prologue...)
	rec = append(rec, 1) // numOfArrays
	rec = append(rec, byte(nalUnitTypeSPS))
	rec = append(rec, be16(1)...) // numNalus
	rec = append(rec, be16(len(sps))...)
	rec = append(rec, sps...)
	return rec
}

func TestParseVideoTagHeader_LegacyCodec(t *testing.T) {
	h, err := ParseVideoTagHeader([]byte{0x12}) // frame_type=1, codec=2 (Sorenson)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeKeyFrame, h.FrameType)
	assert.Equal(t, VideoCodecID(2), h.CodecID)
	assert.Equal(t, 1, h.BodyOffset)
}

func TestParseVideoTagHeader_AVC(t *testing.T) {
	h, err := ParseVideoTagHeader([]byte{0x17, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeKeyFrame, h.FrameType)
	assert.Equal(t, CodecIDAVC, h.CodecID)
	assert.Equal(t, PacketTypeSequenceHeader, h.PacketType)
	assert.Equal(t, 5, h.BodyOffset)
}

func TestParseVideoTagHeader_TooShort(t *testing.T) {
	_, err := ParseVideoTagHeader(nil)
	assert.ErrorIs(t, err, ErrPayloadTooShort)

	_, err = ParseVideoTagHeader([]byte{0x17})
	assert.ErrorIs(t, err, ErrPayloadTooShort)

	_, err = ParseVideoTagHeader([]byte{0x17, 0x00, 0, 0}) // missing composition_time byte
	assert.ErrorIs(t, err, ErrPayloadTooShort)
}

func TestIsKeyFrame(t *testing.T) {
	assert.True(t, IsKeyFrame([]byte{0x12}))
	assert.True(t, IsKeyFrame([]byte{0x42})) // generated key frame
	assert.False(t, IsKeyFrame([]byte{0x22})) // inter frame
	assert.False(t, IsKeyFrame(nil))
}

func TestIsSequenceHeader(t *testing.T) {
	assert.True(t, IsSequenceHeader([]byte{0x17, 0x00, 0, 0, 0}))
	assert.False(t, IsSequenceHeader([]byte{0x17, 0x01, 0, 0, 0}))
	assert.False(t, IsSequenceHeader([]byte{0x12})) // legacy codec, no packet type
}

func TestExtractResolution_AVC(t *testing.T) {
	rec := buildAVCDecoderConfig(h264SPS, h264PPS)
	payload := append([]byte{0x17, 0x00, 0, 0, 0}, rec...)

	res, err := ExtractResolution(payload)
	require.NoError(t, err)
	assert.Greater(t, res.Width, 0)
	assert.Greater(t, res.Height, 0)
}

func TestExtractResolution_HEVC(t *testing.T) {
	rec := buildHEVCDecoderConfig(h265SPS)
	payload := append([]byte{0x1C, 0x00, 0, 0, 0}, rec...)

	res, err := ExtractResolution(payload)
	require.NoError(t, err)
	assert.Greater(t, res.Width, 0)
	assert.Greater(t, res.Height, 0)
}

func TestExtractResolution_NotSequenceHeader(t *testing.T) {
	_, err := ExtractResolution([]byte{0x17, 0x01, 0, 0, 0})
	assert.Error(t, err)
}

func TestExtractResolution_AV1(t *testing.T) {
	// Hand-built sequence_header_obu: seq_profile=0, still_picture=0,
	// reduced_still_picture_header=1 (skips timing/operating-point loop),
	// seq_level_idx[0]=0, frame_width_bits_minus_1=10 (11 bits),
	// frame_height_bits_minus_1=10 (11 bits), max_frame_width_minus_1=1919
	// (width 1920), max_frame_height_minus_1=1079 (height 1080).
	w := bytesutil.NewBitWriter()
	w.WriteBits(0, 3) // seq_profile
	w.WriteBits(0, 1) // still_picture
	w.WriteBits(1, 1) // reduced_still_picture_header
	w.WriteBits(0, 5) // seq_level_idx[0]
	w.WriteBits(10, 4)
	w.WriteBits(10, 4)
	w.WriteBits(1919, 11)
	w.WriteBits(1079, 11)
	seqHeaderPayload := w.Bytes()

	// configOBUs: one OBU with header byte (type=1 seq header, no extension,
	// has_size_field=1) + leb128 size + payload.
	obuHeader := byte(obuTypeSequenceHeader<<3) | 0x02 // has_size_field bit
	var obus []byte
	obus = append(obus, obuHeader, byte(len(seqHeaderPayload)))
	obus = append(obus, seqHeaderPayload...)

	rec := make([]byte, av1ConfigRecordHeaderLen)
	rec[0] = 0x81 // marker=1, version=1
	rec = append(rec, obus...)

	payload := append([]byte{0x10 | byte(CodecIDAV1), 0x00}, rec...)

	res, err := ExtractResolution(payload)
	require.NoError(t, err)
	assert.Equal(t, 1920, res.Width)
	assert.Equal(t, 1080, res.Height)
}
