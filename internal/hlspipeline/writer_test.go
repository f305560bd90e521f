package hlspipeline

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strevio/strev/internal/config"
	"github.com/strevio/strev/internal/hls"
)

func testCfg(t *testing.T) config.WriterConfig {
	t.Helper()
	return config.WriterConfig{OutputDir: t.TempDir(), NameTemplate: "out_%i"}
}

func TestWriter_TS_ConcatenatesSegmentsIntoOneFile(t *testing.T) {
	w := New(testCfg(t), 0, 0, "s1", nil)
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 1}, []byte("AAA"))))
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 2}, []byte("BB"))))
	require.NoError(t, w.Write(hls.EndMarker()))

	raw, err := os.ReadFile(w.Stats().Path)
	require.NoError(t, err)
	assert.Equal(t, "AAABB", string(raw))
	assert.Equal(t, "ts", w.Stats().Format)
}

func TestWriter_Fmp4_PrependsInitSegmentToEveryFile(t *testing.T) {
	w := New(testCfg(t), 6, 0, "s1", nil) // maxBytes=6 forces a cut after the first fragment body
	require.NoError(t, w.Write(hls.NewInitData(hls.SegmentMeta{}, []byte("INIT"))))
	require.NoError(t, w.Write(hls.NewFragmentData(hls.SegmentMeta{MediaSequenceNumber: 1}, []byte("frag1"))))
	first := w.Stats().Path
	require.NoError(t, w.Write(hls.NewFragmentData(hls.SegmentMeta{MediaSequenceNumber: 2}, []byte("frag2"))))
	second := w.Stats().Path
	require.NoError(t, w.Write(hls.EndMarker()))

	require.NotEqual(t, first, second)
	raw1, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "INITfrag1", string(raw1))

	raw2, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "INITfrag2", string(raw2))
}

func TestWriter_SplitsOnMaxBytes(t *testing.T) {
	w := New(testCfg(t), 4, 0, "s1", nil)
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 1}, []byte("AAAA"))))
	first := w.Stats().Path
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 2}, []byte("BBBB"))))
	second := w.Stats().Path
	require.NoError(t, w.Write(hls.EndMarker()))

	assert.NotEqual(t, first, second)
}

func TestWriter_DiscontinuityMarkerDoesNotForceASplit(t *testing.T) {
	w := New(testCfg(t), 0, 0, "s1", nil)
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 1}, []byte("A"))))
	require.NoError(t, w.Write(hls.NewDiscontinuityData(hls.SegmentMeta{MediaSequenceNumber: 2, Discontinuity: true})))
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 2}, []byte("B"))))
	path := w.Stats().Path
	require.NoError(t, w.Write(hls.EndMarker()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AB", string(raw))
	assert.Equal(t, 1, w.Stats().Discontinuities)
}

func TestWriter_SplitsOnMaxDuration(t *testing.T) {
	w := New(testCfg(t), 0, 5*time.Millisecond, "s1", nil)
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 1}, []byte("A"))))
	first := w.Stats().Path
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, w.Write(hls.NewTsData(hls.SegmentMeta{MediaSequenceNumber: 2}, []byte("B"))))
	second := w.Stats().Path
	require.NoError(t, w.Write(hls.EndMarker()))

	assert.NotEqual(t, first, second)
}
