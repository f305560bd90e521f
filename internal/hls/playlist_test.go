package hls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:10
#EXTINF:6.000,
seg10.ts
#EXT-X-DISCONTINUITY
#EXTINF:6.000,
seg11.ts
#EXTINF:6.000,
seg12.ts
`

func TestParseMediaPlaylist_Basic(t *testing.T) {
	pl, err := ParseMediaPlaylist([]byte(samplePlaylist))
	require.NoError(t, err)
	assert.Equal(t, 3, pl.Version)
	assert.Equal(t, 6*time.Second, pl.TargetDuration)
	assert.EqualValues(t, 10, pl.MediaSequence)
	require.Len(t, pl.Segments, 3)
	assert.Equal(t, "seg10.ts", pl.Segments[0].URI)
	assert.False(t, pl.Segments[0].Discontinuity)
	assert.Equal(t, "seg11.ts", pl.Segments[1].URI)
	assert.True(t, pl.Segments[1].Discontinuity)
	assert.False(t, pl.Segments[2].Discontinuity)
	assert.False(t, pl.EndList)
}

func TestParseMediaPlaylist_KeyAppliesToFollowingSegments(t *testing.T) {
	data := `#EXTM3U
#EXT-X-KEY:METHOD=AES-128,URI="https://example.com/key",IV=0x00000000000000000000000000000001
#EXTINF:4.0,
a.ts
#EXTINF:4.0,
b.ts
#EXT-X-ENDLIST
`
	pl, err := ParseMediaPlaylist([]byte(data))
	require.NoError(t, err)
	require.True(t, pl.EndList)
	require.Len(t, pl.Segments, 2)
	require.NotNil(t, pl.Segments[0].Key)
	assert.Equal(t, "AES-128", pl.Segments[0].Key.Method)
	assert.Equal(t, "https://example.com/key", pl.Segments[0].Key.URI)
	assert.Len(t, pl.Segments[0].Key.IV, 16)
	require.NotNil(t, pl.Segments[1].Key)
	assert.Equal(t, pl.Segments[0].Key.URI, pl.Segments[1].Key.URI)
}

func TestParseMediaPlaylist_MapAssociatesInitWithFragments(t *testing.T) {
	data := `#EXTM3U
#EXT-X-MAP:URI="init.mp4"
#EXTINF:4.0,
frag1.m4s
#EXTINF:4.0,
frag2.m4s
`
	pl, err := ParseMediaPlaylist([]byte(data))
	require.NoError(t, err)
	require.Len(t, pl.Segments, 2)
	assert.Equal(t, "init.mp4", pl.Segments[0].MapURI)
	assert.Equal(t, "init.mp4", pl.Segments[1].MapURI)
}

func TestParseMediaPlaylist_RejectsMissingExtm3u(t *testing.T) {
	_, err := ParseMediaPlaylist([]byte("#EXTINF:4,\na.ts\n"))
	require.Error(t, err)
}

func TestParseMasterPlaylist_ParsesVariants(t *testing.T) {
	data := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720
high.m3u8
`
	mp, err := ParseMasterPlaylist([]byte(data))
	require.NoError(t, err)
	require.Len(t, mp.Variants, 2)
	assert.Equal(t, "low.m3u8", mp.Variants[0].URI)
	assert.Equal(t, 800000, mp.Variants[0].Bandwidth)
	assert.Equal(t, "high.m3u8", mp.Variants[1].URI)
	assert.Equal(t, 2800000, mp.Variants[1].Bandwidth)
}

func TestIsMasterPlaylist(t *testing.T) {
	assert.True(t, IsMasterPlaylist([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nfoo.m3u8\n")))
	assert.False(t, IsMasterPlaylist([]byte(samplePlaylist)))
}
