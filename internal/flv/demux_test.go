package flv

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFLVHeader(buf *bytes.Buffer, hasAudio, hasVideo bool) {
	buf.WriteString("FLV")
	buf.WriteByte(1) // version
	var flags byte
	if hasAudio {
		flags |= 0x04
	}
	if hasVideo {
		flags |= 0x01
	}
	buf.WriteByte(flags)
	buf.Write([]byte{0, 0, 0, 9}) // data offset
}

func writeTag(buf *bytes.Buffer, prevTagSize uint32, tagType TagType, timestamp uint32, payload []byte) {
	var prev [4]byte
	prev[0] = byte(prevTagSize >> 24)
	prev[1] = byte(prevTagSize >> 16)
	prev[2] = byte(prevTagSize >> 8)
	prev[3] = byte(prevTagSize)
	buf.Write(prev[:])

	buf.WriteByte(byte(tagType))
	size := uint32(len(payload))
	buf.Write([]byte{byte(size >> 16), byte(size >> 8), byte(size)})
	buf.Write([]byte{byte(timestamp >> 16), byte(timestamp >> 8), byte(timestamp), byte(timestamp >> 24)})
	buf.Write([]byte{0, 0, 0}) // stream id
	buf.Write(payload)
}

// tagOnDiskSize is the previous-tag-size value written after a tag: the
// 11-byte header + payload, i.e. Tag.Size without its 4-byte trailer.
func tagOnDiskSize(payload []byte) uint32 {
	return uint32(11 + len(payload))
}

func TestDemuxer_HeaderThenTags(t *testing.T) {
	var buf bytes.Buffer
	writeFLVHeader(&buf, true, true)
	writeTag(&buf, 0, TagTypeScript, 0, []byte("meta"))
	writeTag(&buf, tagOnDiskSize([]byte("meta")), TagTypeVideo, 40, []byte{0x17, 0x01, 0, 0, 0, 0xAA})

	d := NewDemuxer(&buf)

	header, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, DataKindHeader, header.Kind)
	assert.True(t, header.Header.HasAudio)
	assert.True(t, header.Header.HasVideo)

	script, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, DataKindTag, script.Kind)
	assert.Equal(t, TagTypeScript, script.Tag.Type)
	assert.Equal(t, []byte("meta"), []byte(script.Tag.Payload))

	video, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, TagTypeVideo, video.Tag.Type)
	assert.Equal(t, uint32(40), video.Tag.Timestamp)

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDemuxer_InvalidHeaderSignature(t *testing.T) {
	d := NewDemuxer(bytes.NewReader([]byte("NOT-FLV-DATA")))
	_, err := d.Next()
	var invalidHeader *ErrInvalidHeader
	require.ErrorAs(t, err, &invalidHeader)
}

func TestDemuxer_TruncatedHeader(t *testing.T) {
	d := NewDemuxer(bytes.NewReader([]byte("FLV")))
	_, err := d.Next()
	var incomplete *ErrIncompleteData
	require.ErrorAs(t, err, &incomplete)
}

func TestDemuxer_ResyncAfterCorruption(t *testing.T) {
	var buf bytes.Buffer
	writeFLVHeader(&buf, false, true)

	// Inject garbage bytes (not a valid prev-tag-size/tag-type pair) before a
	// well-formed tag, so the demuxer must resync to find it.
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x99, 0x99})
	writeTag(&buf, 0, TagTypeVideo, 10, []byte{0x17, 0x01, 0, 0, 0, 0xBB})

	d := NewDemuxer(&buf)

	_, err := d.Next() // header
	require.NoError(t, err)

	data, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, DataKindTag, data.Kind)
	assert.Equal(t, TagTypeVideo, data.Tag.Type)

	stats := d.Stats()
	assert.Greater(t, stats.ResyncAttempts, 0)
	assert.Greater(t, stats.BytesSkippedTotal, 0)
}

func TestDemuxer_ResyncFailsWhenNoValidTagFound(t *testing.T) {
	var buf bytes.Buffer
	writeFLVHeader(&buf, false, true)
	buf.Write(make([]byte, resyncBudget+16)) // all zero bytes, type 0 is never a valid tag type

	d := NewDemuxer(&buf)
	_, err := d.Next() // header
	require.NoError(t, err)

	_, err = d.Next()
	var resyncFailed *ErrResyncFailed
	require.ErrorAs(t, err, &resyncFailed)
}

func TestData_IsKeyFrame(t *testing.T) {
	keyFrame := NewTagData(Tag{Type: TagTypeVideo, Payload: []byte{0x17, 0x00, 0, 0, 0}})
	assert.True(t, keyFrame.IsKeyFrame())

	interFrame := NewTagData(Tag{Type: TagTypeVideo, Payload: []byte{0x27, 0x00, 0, 0, 0}})
	assert.False(t, interFrame.IsKeyFrame())

	audio := NewTagData(Tag{Type: TagTypeAudio, Payload: []byte{0x17}})
	assert.False(t, audio.IsKeyFrame())

	header := NewHeaderData(Header{})
	assert.False(t, header.IsKeyFrame())
}

func TestTag_Size(t *testing.T) {
	tag := Tag{Payload: make([]byte, 100)}
	assert.Equal(t, 11+100+4, tag.Size())
}

func TestData_Size(t *testing.T) {
	assert.Equal(t, 9, NewHeaderData(Header{}).Size())
	assert.Equal(t, 0, NewEndOfSequence(nil).Size())
	assert.Equal(t, 115, NewTagData(Tag{Payload: make([]byte, 100)}).Size())
}
