package flvpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strevio/strev/internal/flv"
)

func runDefragment(t *testing.T, d *defragment, items []flv.Data) []flv.Data {
	t.Helper()
	var out []flv.Data
	emit := func(v flv.Data) error { out = append(out, v); return nil }
	for _, item := range items {
		require.NoError(t, d.Process(item, emit))
	}
	require.NoError(t, d.Finish(emit))
	return out
}

func TestDefragment_FlushesAtThreshold(t *testing.T) {
	d := newDefragment(2)
	items := []flv.Data{
		flv.NewHeaderData(flv.Header{}),
		legacyVideoTag(0, false),
		legacyVideoTag(40, false),
		legacyVideoTag(80, false),
	}
	out := runDefragment(t, d, items)
	require.Len(t, out, 4)
}

func TestDefragment_FlushesEarlyOnKeyframe(t *testing.T) {
	d := newDefragment(10)
	items := []flv.Data{
		flv.NewHeaderData(flv.Header{}),
		legacyVideoTag(0, true),
	}
	out := runDefragment(t, d, items)
	require.Len(t, out, 2)
}

func TestDefragment_DiscardsBufferOnNewHeaderBeforeFlush(t *testing.T) {
	d := newDefragment(10)
	var out []flv.Data
	emit := func(v flv.Data) error { out = append(out, v); return nil }

	require.NoError(t, d.Process(flv.NewHeaderData(flv.Header{}), emit))
	require.NoError(t, d.Process(legacyVideoTag(0, false), emit))
	require.NoError(t, d.Process(legacyVideoTag(40, false), emit))
	// Only the header has been flushed; the two buffered tags are fragment
	// residue from before the new header restarts the stream.
	require.NoError(t, d.Process(flv.NewHeaderData(flv.Header{}), emit))
	require.NoError(t, d.Finish(emit))

	var headers int
	for _, d := range out {
		if d.Kind == flv.DataKindHeader {
			headers++
		}
	}
	assert.Equal(t, 2, headers)
	assert.Len(t, out, 2, "buffered tags before the second header must be discarded")
}
