package flv

import "github.com/strevio/strev/internal/amf0"

// metaDataCommandName is the AMF0 String that precedes the onMetaData
// ECMAArray in a script tag's payload.
const metaDataCommandName = "onMetaData"

// Metadata is the set of onMetaData fields the writer fills in at file
// close. Fields are populated incrementally as the writer observes tags;
// zero values mean "unknown" and are still written (placeholder-sized, so
// the in-place patch never needs to grow the file).
type Metadata struct {
	Duration        float64
	FileSize        float64
	Width           float64
	Height          float64
	VideoCodecID    float64
	AudioCodecID    float64
	LastTimestamp   float64
	HasKeyframes    bool
	KeyframeTimes   []float64
	KeyframeFilePos []float64
}

// Encode serializes m as the script-tag payload the writer patches in
// place: AMF0 String "onMetaData" followed by an AMF0 ECMAArray of
// properties, property order fixed so placeholder and real encodings always
// agree byte-for-byte in size given the same keyframe-slot count.
func (m Metadata) Encode() ([]byte, error) {
	nameVal, err := amf0.Marshal(amf0.Str(metaDataCommandName))
	if err != nil {
		return nil, err
	}

	times := make([]amf0.Value, len(m.KeyframeTimes))
	for i, v := range m.KeyframeTimes {
		times[i] = amf0.Num(v)
	}
	positions := make([]amf0.Value, len(m.KeyframeFilePos))
	for i, v := range m.KeyframeFilePos {
		positions[i] = amf0.Num(v)
	}

	body, err := amf0.Marshal(amf0.ECMAArr(
		amf0.Property{Key: "duration", Value: amf0.Num(m.Duration)},
		amf0.Property{Key: "filesize", Value: amf0.Num(m.FileSize)},
		amf0.Property{Key: "width", Value: amf0.Num(m.Width)},
		amf0.Property{Key: "height", Value: amf0.Num(m.Height)},
		amf0.Property{Key: "videocodecid", Value: amf0.Num(m.VideoCodecID)},
		amf0.Property{Key: "audiocodecid", Value: amf0.Num(m.AudioCodecID)},
		amf0.Property{Key: "lasttimestamp", Value: amf0.Num(m.LastTimestamp)},
		amf0.Property{Key: "hasKeyframes", Value: amf0.Bool(m.HasKeyframes)},
		amf0.Property{Key: "keyframes", Value: amf0.Obj(
			amf0.Property{Key: "times", Value: amf0.StrictArr(times...)},
			amf0.Property{Key: "filepositions", Value: amf0.StrictArr(positions...)},
		)},
	))
	if err != nil {
		return nil, err
	}
	return append(nameVal, body...), nil
}

// PlaceholderMetadata builds a zeroed Metadata whose encoded size is an
// upper bound for any real metadata with up to maxKeyframes keyframes: every
// numeric field present, keyframe arrays pre-sized, so the writer's
// close-time patch never needs to grow the file.
func PlaceholderMetadata(maxKeyframes int) Metadata {
	return Metadata{
		KeyframeTimes:   make([]float64, maxKeyframes),
		KeyframeFilePos: make([]float64, maxKeyframes),
	}
}
