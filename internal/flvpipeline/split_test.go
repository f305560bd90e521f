package flvpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strevio/strev/internal/flv"
)

func videoTagOfSize(ts uint32, keyframe bool, payloadLen int) flv.Data {
	frameType := byte(0x20)
	if keyframe {
		frameType = 0x10
	}
	payload := make([]byte, payloadLen)
	payload[0] = frameType
	return flv.NewTagData(flv.Tag{Type: flv.TagTypeVideo, Timestamp: ts, Payload: payload})
}

func runSplit(t *testing.T, s *split, items []flv.Data) []flv.Data {
	t.Helper()
	var out []flv.Data
	emit := func(d flv.Data) error {
		out = append(out, d)
		return nil
	}
	for _, item := range items {
		require.NoError(t, s.Process(item, emit))
	}
	require.NoError(t, s.Finish(emit))
	return out
}

// TestSplit_NonKeyframeOverLimitStillWritten reproduces the literal scenario:
// max_file_size=1000, a non-keyframe tag pushes bytesInFile from 950 to
// 1150, still written to the current file; the next tag, a keyframe, then
// triggers the cut.
func TestSplit_NonKeyframeOverLimitStillWritten(t *testing.T) {
	s := newSplit(1000, 0, true, 4)
	header := flv.NewHeaderData(flv.Header{Version: 1, HasAudio: true, HasVideo: true, DataOffset: 9})

	// Tag payload sizes chosen so on-disk Tag.Size() (11+payload+4) totals
	// close to the 950/1150/300 byte figures used by the scenario text.
	padTo := func(total int) int { return total - 15 }

	items := []flv.Data{
		header,
		videoTagOfSize(0, true, padTo(950)),
		videoTagOfSize(40, false, padTo(200)),
		videoTagOfSize(80, true, padTo(300)),
	}
	out := runSplit(t, s, items)

	var eosCount int
	for _, d := range out {
		if d.Kind == flv.DataKindEndOfSequence {
			eosCount++
		}
	}
	assert.Equal(t, 1, eosCount, "exactly one cut, at the second keyframe")

	// Verify ordering: ..., 200-byte non-key tag, EndOfSequence, new Header, placeholder script, keyframe.
	var sawOverLimitTag, sawEOS, sawNewHeaderAfterEOS bool
	afterEOS := false
	for _, d := range out {
		if d.Kind == flv.DataKindTag && d.Tag.Type == flv.TagTypeVideo && len(d.Tag.Payload) == padTo(200) {
			sawOverLimitTag = true
		}
		if d.Kind == flv.DataKindEndOfSequence {
			sawEOS = true
			afterEOS = true
			continue
		}
		if afterEOS && d.Kind == flv.DataKindHeader {
			sawNewHeaderAfterEOS = true
			afterEOS = false
		}
	}
	assert.True(t, sawOverLimitTag)
	assert.True(t, sawEOS)
	assert.True(t, sawNewHeaderAfterEOS)
}

func TestSplit_DisabledWhenMaxBytesZero(t *testing.T) {
	s := newSplit(0, 0, true, 4)
	items := []flv.Data{
		flv.NewHeaderData(flv.Header{Version: 1}),
		videoTagOfSize(0, true, 10000),
		videoTagOfSize(40, true, 10000),
	}
	out := runSplit(t, s, items)
	for _, d := range out {
		assert.NotEqual(t, flv.DataKindEndOfSequence, d.Kind)
	}
}
