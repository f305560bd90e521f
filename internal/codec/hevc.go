package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// nalUnitTypeSPS is the HEVC NAL unit type for a Sequence Parameter Set.
const nalUnitTypeSPS = 33

// resolutionFromHEVCDecoderConfig parses an HEVCDecoderConfigurationRecord
// (ISO 14496-15 §8.3.3.1): a fixed 22-byte prologue followed by
// numOfArrays arrays of NAL units, each array tagged with a NAL unit type.
// It extracts the first SPS NAL unit and decodes its resolution via
// mediacommon's h265.SPS.
func resolutionFromHEVCDecoderConfig(data []byte) (Resolution, error) {
	const prologueLen = 22
	if len(data) < prologueLen+1 {
		return Resolution{}, fmt.Errorf("codec: hevc config record too short")
	}
	numArrays := int(data[prologueLen])
	pos := prologueLen + 1

	for a := 0; a < numArrays; a++ {
		if pos+3 > len(data) {
			return Resolution{}, fmt.Errorf("codec: hevc config record truncated array header")
		}
		nalUnitType := data[pos] & 0x3F
		numNalus := int(data[pos+1])<<8 | int(data[pos+2])
		pos += 3

		for n := 0; n < numNalus; n++ {
			if pos+2 > len(data) {
				return Resolution{}, fmt.Errorf("codec: hevc config record truncated nal length")
			}
			nalLen := int(data[pos])<<8 | int(data[pos+1])
			pos += 2
			if pos+nalLen > len(data) {
				return Resolution{}, fmt.Errorf("codec: hevc config record truncated nal")
			}
			nalData := data[pos : pos+nalLen]
			pos += nalLen

			if nalUnitType != nalUnitTypeSPS {
				continue
			}
			// mediacommon's SPS unmarshaler takes the NAL unit including its
			// 2-byte HEVC header, same as gortsplib's formats.H265.SPS field.
			var sps h265.SPS
			if err := sps.Unmarshal(nalData); err != nil {
				continue
			}
			return Resolution{Width: sps.Width(), Height: sps.Height()}, nil
		}
	}
	return Resolution{}, fmt.Errorf("codec: hevc config record has no decodable sps")
}
