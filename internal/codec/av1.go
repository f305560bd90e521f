package codec

import (
	"fmt"

	"github.com/strevio/strev/internal/bytesutil"
)

// av1ConfigRecordHeaderLen is the fixed-size prologue of an
// AV1CodecConfigurationRecord, before the configOBUs byte stream begins.
const av1ConfigRecordHeaderLen = 4

const obuTypeSequenceHeader = 1

// resolutionFromAV1DecoderConfig parses an AV1CodecConfigurationRecord
// (AV1 Codec ISO Media File Format Binding §2.3.3) and decodes the
// sequence_header_obu it carries to recover the maximum frame dimensions.
// mediacommon has no AV1 sequence-header parser, so this is hand-rolled
// directly against the AV1 bitstream spec (§5.5), using the bit reader from
// internal/bytesutil.
func resolutionFromAV1DecoderConfig(data []byte) (Resolution, error) {
	if len(data) < av1ConfigRecordHeaderLen {
		return Resolution{}, fmt.Errorf("codec: av1 config record too short")
	}
	obus := data[av1ConfigRecordHeaderLen:]
	seqHeader, err := findSequenceHeaderOBU(obus)
	if err != nil {
		return Resolution{}, err
	}
	return parseAV1SequenceHeaderResolution(seqHeader)
}

// findSequenceHeaderOBU scans the configOBUs byte stream for the first
// OBU_SEQUENCE_HEADER and returns its payload bytes (header stripped).
func findSequenceHeaderOBU(data []byte) ([]byte, error) {
	pos := 0
	for pos < len(data) {
		forbidden := data[pos] >> 7
		if forbidden != 0 {
			return nil, fmt.Errorf("codec: av1 obu forbidden bit set")
		}
		obuType := (data[pos] >> 3) & 0x0F
		extensionFlag := (data[pos] >> 2) & 0x01
		hasSizeField := (data[pos] >> 1) & 0x01
		pos++

		if extensionFlag != 0 {
			pos++ // obu_extension_header
		}

		var obuSize int
		if hasSizeField != 0 {
			size, n, err := readLEB128(data[pos:])
			if err != nil {
				return nil, err
			}
			obuSize = int(size)
			pos += n
		} else {
			obuSize = len(data) - pos
		}

		if pos+obuSize > len(data) {
			return nil, fmt.Errorf("codec: av1 obu truncated")
		}
		payload := data[pos : pos+obuSize]
		pos += obuSize

		if obuType == obuTypeSequenceHeader {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("codec: av1 config record has no sequence header obu")
}

// readLEB128 reads an AV1-style little-endian base-128 unsigned integer,
// capped at 8 bytes per the bitstream spec.
func readLEB128(data []byte) (value uint64, n int, err error) {
	for i := 0; i < 8; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("codec: av1 leb128 truncated")
		}
		b := data[i]
		value |= uint64(b&0x7F) << (7 * i)
		n++
		if b&0x80 == 0 {
			return value, n, nil
		}
	}
	return 0, 0, fmt.Errorf("codec: av1 leb128 too long")
}

func parseAV1SequenceHeaderResolution(payload []byte) (Resolution, error) {
	r := bytesutil.NewBitReader(payload)

	if _, err := r.ReadBits(3); err != nil { // seq_profile
		return Resolution{}, err
	}
	stillPicture, err := r.ReadBits(1)
	if err != nil {
		return Resolution{}, err
	}
	reducedStillPictureHeader, err := r.ReadBits(1)
	if err != nil {
		return Resolution{}, err
	}
	_ = stillPicture

	decoderModelInfoPresent := uint64(0)
	if reducedStillPictureHeader != 0 {
		if _, err := r.ReadBits(5); err != nil { // seq_level_idx[0]
			return Resolution{}, err
		}
	} else {
		timingInfoPresent, err := r.ReadBits(1)
		if err != nil {
			return Resolution{}, err
		}
		if timingInfoPresent != 0 {
			if err := skipTimingInfo(r); err != nil {
				return Resolution{}, err
			}
			decoderModelInfoPresent, err = r.ReadBits(1)
			if err != nil {
				return Resolution{}, err
			}
			if decoderModelInfoPresent != 0 {
				if err := skipDecoderModelInfo(r); err != nil {
					return Resolution{}, err
				}
			}
		}
		initialDisplayDelayPresent, err := r.ReadBits(1)
		if err != nil {
			return Resolution{}, err
		}
		operatingPointsCntMinus1, err := r.ReadBits(5)
		if err != nil {
			return Resolution{}, err
		}
		for i := uint64(0); i <= operatingPointsCntMinus1; i++ {
			if _, err := r.ReadBits(12); err != nil { // operating_point_idc
				return Resolution{}, err
			}
			seqLevelIdx, err := r.ReadBits(5)
			if err != nil {
				return Resolution{}, err
			}
			if seqLevelIdx > 7 {
				if _, err := r.ReadBits(1); err != nil { // seq_tier
					return Resolution{}, err
				}
			}
			if decoderModelInfoPresent != 0 {
				if err := skipOperatingParametersInfo(r); err != nil {
					return Resolution{}, err
				}
			}
			if initialDisplayDelayPresent != 0 {
				present, err := r.ReadBits(1)
				if err != nil {
					return Resolution{}, err
				}
				if present != 0 {
					if _, err := r.ReadBits(4); err != nil {
						return Resolution{}, err
					}
				}
			}
		}
	}

	frameWidthBitsMinus1, err := r.ReadBits(4)
	if err != nil {
		return Resolution{}, err
	}
	frameHeightBitsMinus1, err := r.ReadBits(4)
	if err != nil {
		return Resolution{}, err
	}
	maxFrameWidthMinus1, err := r.ReadBits(int(frameWidthBitsMinus1) + 1)
	if err != nil {
		return Resolution{}, err
	}
	maxFrameHeightMinus1, err := r.ReadBits(int(frameHeightBitsMinus1) + 1)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Width:  int(maxFrameWidthMinus1) + 1,
		Height: int(maxFrameHeightMinus1) + 1,
	}, nil
}

func skipTimingInfo(r *bytesutil.BitReader) error {
	if _, err := r.ReadBits(32); err != nil { // num_units_in_display_tick
		return err
	}
	if _, err := r.ReadBits(32); err != nil { // time_scale
		return err
	}
	equalPictureInterval, err := r.ReadBits(1)
	if err != nil {
		return err
	}
	if equalPictureInterval != 0 {
		if _, err := readUVLC(r); err != nil {
			return err
		}
	}
	return nil
}

func skipDecoderModelInfo(r *bytesutil.BitReader) error {
	if _, err := r.ReadBits(5); err != nil { // buffer_delay_length_minus_1
		return err
	}
	if _, err := r.ReadBits(32); err != nil { // num_units_in_decoding_tick
		return err
	}
	if _, err := r.ReadBits(5); err != nil { // buffer_removal_time_length_minus_1
		return err
	}
	if _, err := r.ReadBits(5); err != nil { // frame_presentation_time_length_minus_1
		return err
	}
	return nil
}

func skipOperatingParametersInfo(r *bytesutil.BitReader) error {
	// Conservative: re-derive buffer_delay_length from context is not
	// tracked here since no caller currently needs decoder-model timing;
	// this path is only reached by streams with decoder_model_info_present,
	// which FLV/HLS live captures essentially never set.
	return fmt.Errorf("codec: av1 decoder_model_info operating points not supported")
}

func readUVLC(r *bytesutil.BitReader) (uint64, error) {
	leadingZeros := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		leadingZeros++
		if leadingZeros >= 32 {
			return 1<<32 - 1, nil
		}
	}
	value, err := r.ReadBits(leadingZeros)
	if err != nil {
		return 0, err
	}
	return value + (1<<uint(leadingZeros) - 1), nil
}
