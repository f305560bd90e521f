package flvpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strevio/strev/internal/flv"
)

func videoSeqHeader() flv.Data {
	// AVC sequence header: frame_type=1(key)<<4 | codec_id=7, packet_type=0,
	// 3-byte composition_time, then arbitrary config bytes.
	return flv.NewTagData(flv.Tag{
		Type:      flv.TagTypeVideo,
		Timestamp: 0,
		Payload:   []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0xAA, 0xBB},
	})
}

func avcVideoTag(ts uint32, keyframe bool) flv.Data {
	frameType := byte(0x27) // inter, codec AVC
	if keyframe {
		frameType = 0x17
	}
	return flv.NewTagData(flv.Tag{
		Type:      flv.TagTypeVideo,
		Timestamp: ts,
		Payload:   []byte{frameType, 0x01, 0x00, 0x00, 0x00, 0xCC},
	})
}

func runGOPSort(t *testing.T, items []flv.Data) []flv.Data {
	t.Helper()
	g := newGOPSort()
	var out []flv.Data
	emit := func(d flv.Data) error { out = append(out, d); return nil }
	for _, item := range items {
		require.NoError(t, g.Process(item, emit))
	}
	require.NoError(t, g.Finish(emit))
	return out
}

func TestGOPSort_EmitsSeqHeaderOnceThenGOPInOrder(t *testing.T) {
	items := []flv.Data{
		videoSeqHeader(),
		avcVideoTag(0, true),
		avcVideoTag(80, false),
		avcVideoTag(40, false), // out of order arrival within the GOP
		avcVideoTag(120, true), // opens next GOP, flushing the first
	}
	out := runGOPSort(t, items)

	// First GOP: seq header, keyframe(ts=0), then the rest sorted by ts.
	require.True(t, len(out) >= 4)
	assert.True(t, out[0].Kind == flv.DataKindTag && out[0].Tag.Type == flv.TagTypeVideo)
	assert.Equal(t, uint32(0), out[1].Tag.Timestamp)
	assert.True(t, out[1].IsKeyFrame())
	assert.Equal(t, uint32(40), out[2].Tag.Timestamp)
	assert.Equal(t, uint32(80), out[3].Tag.Timestamp)
}

func TestGOPSort_DoesNotReemitUnchangedSeqHeader(t *testing.T) {
	items := []flv.Data{
		videoSeqHeader(),
		avcVideoTag(0, true),
		avcVideoTag(40, true), // next GOP, same seq header still applies
	}
	out := runGOPSort(t, items)

	seqHeaders := 0
	for _, d := range out {
		if d.Kind == flv.DataKindTag && d.Tag.Type == flv.TagTypeVideo && len(d.Tag.Payload) == len(videoSeqHeader().Tag.Payload) && d.Tag.Payload[1] == 0 {
			seqHeaders++
		}
	}
	assert.Equal(t, 1, seqHeaders, "sequence header should only be emitted once, at the first GOP")
}
