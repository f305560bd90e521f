package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// resolutionFromAVCDecoderConfig parses an AVCDecoderConfigurationRecord
// (ISO 14496-15 §5.2.4.1) and returns the resolution carried by its first
// SPS, via mediacommon's h264.SPS — the same package the relay's TS demuxer
// uses for H.264 NAL inspection.
func resolutionFromAVCDecoderConfig(data []byte) (Resolution, error) {
	if len(data) < 6 {
		return Resolution{}, fmt.Errorf("codec: avc config record too short")
	}
	// data[0]=configurationVersion data[1..3]=profile/compat/level
	// data[4] = 0xFC | lengthSizeMinusOne
	numSPS := int(data[5] & 0x1F)
	pos := 6
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(data) {
			return Resolution{}, fmt.Errorf("codec: avc config record truncated sps length")
		}
		spsLen := int(data[pos])<<8 | int(data[pos+1])
		pos += 2
		if pos+spsLen > len(data) {
			return Resolution{}, fmt.Errorf("codec: avc config record truncated sps")
		}
		spsData := data[pos : pos+spsLen]
		pos += spsLen

		var sps h264.SPS
		if err := sps.Unmarshal(spsData); err != nil {
			continue
		}
		return Resolution{Width: sps.Width(), Height: sps.Height()}, nil
	}
	return Resolution{}, fmt.Errorf("codec: avc config record has no decodable sps")
}
