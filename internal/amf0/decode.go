package amf0

import (
	"fmt"
	"math"

	"github.com/strevio/strev/internal/bytesutil"
)

// Decoder reads AMF0 values from an underlying byte cursor.
type Decoder struct {
	c *bytesutil.Cursor
}

// NewDecoder wraps buf for AMF0 decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{c: bytesutil.NewCursor(buf)}
}

// Pos returns the decoder's current byte offset, useful for callers that
// need to know where a top-level value ended.
func (d *Decoder) Pos() int { return d.c.Pos() }

// Next decodes and returns the next value, whatever its marker.
func (d *Decoder) Next() (Value, error) {
	markerByte, err := d.c.ReadU8()
	if err != nil {
		return Value{}, err
	}
	return d.decodeBody(Marker(markerByte))
}

// NextWithType decodes the next value and requires it carry the given
// marker. The marker byte is always consumed, even on mismatch — per the
// resolved discipline, this decoder never rewinds.
func (d *Decoder) NextWithType(expected Marker) (Value, error) {
	markerByte, err := d.c.ReadU8()
	if err != nil {
		return Value{}, err
	}
	got := Marker(markerByte)
	if got != expected {
		return Value{}, &WrongTypeError{Expected: expected, Got: got}
	}
	return d.decodeBody(got)
}

func (d *Decoder) decodeBody(marker Marker) (Value, error) {
	switch marker {
	case MarkerNumber:
		return d.decodeNumber()
	case MarkerBoolean:
		return d.decodeBoolean()
	case MarkerString:
		return d.decodeString()
	case MarkerLongString:
		return d.decodeLongString()
	case MarkerObject:
		return d.decodeObject(MarkerObject)
	case MarkerECMAArray:
		return d.decodeECMAArray()
	case MarkerStrictArray:
		return d.decodeStrictArray()
	case MarkerNull:
		return Value{Kind: MarkerNull}, nil
	case MarkerUndefined:
		return Value{Kind: MarkerUndefined}, nil
	case MarkerDate:
		return d.decodeDate()
	case MarkerObjectEnd:
		return Value{}, &UnsupportedTypeError{Marker: marker}
	default:
		return Value{}, &UnknownMarkerError{Marker: byte(marker)}
	}
}

func (d *Decoder) decodeNumber() (Value, error) {
	bits, err := d.c.ReadU32BE()
	if err != nil {
		return Value{}, err
	}
	hi := uint64(bits)
	lo, err := d.c.ReadU32BE()
	if err != nil {
		return Value{}, err
	}
	raw := hi<<32 | uint64(lo)
	return Num(math.Float64frombits(raw)), nil
}

func (d *Decoder) decodeBoolean() (Value, error) {
	b, err := d.c.ReadU8()
	if err != nil {
		return Value{}, err
	}
	return Bool(b != 0), nil
}

func (d *Decoder) readShortString() (string, error) {
	n, err := d.c.ReadU16BE()
	if err != nil {
		return "", err
	}
	v, err := d.c.ExtractBytes(int(n))
	if err != nil {
		return "", &StringParseError{Reason: err.Error()}
	}
	return string(v), nil
}

func (d *Decoder) decodeString() (Value, error) {
	s, err := d.readShortString()
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: MarkerString, Str: s}, nil
}

func (d *Decoder) decodeLongString() (Value, error) {
	n, err := d.c.ReadU32BE()
	if err != nil {
		return Value{}, err
	}
	v, err := d.c.ExtractBytes(int(n))
	if err != nil {
		return Value{}, &StringParseError{Reason: err.Error()}
	}
	return Value{Kind: MarkerLongString, Str: string(v)}, nil
}

// decodeObject reads property pairs until the 00 00 09 end sentinel.
func (d *Decoder) decodeObject(kind Marker) (Value, error) {
	var props []Property
	for {
		key, err := d.readShortString()
		if err != nil {
			return Value{}, err
		}
		markerByte, err := d.c.ReadU8()
		if err != nil {
			return Value{}, err
		}
		if key == "" && Marker(markerByte) == MarkerObjectEnd {
			return Value{Kind: kind, Properties: props}, nil
		}
		val, err := d.decodeBody(Marker(markerByte))
		if err != nil {
			return Value{}, err
		}
		props = append(props, Property{Key: key, Value: val})
	}
}

func (d *Decoder) decodeECMAArray() (Value, error) {
	// 4-byte approximate element count; not authoritative, several
	// encoders misreport it, so it is read and ignored.
	if _, err := d.c.ReadU32BE(); err != nil {
		return Value{}, err
	}
	v, err := d.decodeObject(MarkerECMAArray)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func (d *Decoder) decodeStrictArray() (Value, error) {
	n, err := d.c.ReadU32BE()
	if err != nil {
		return Value{}, err
	}
	items := make([]Value, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := d.Next()
		if err != nil {
			return Value{}, fmt.Errorf("amf0: strict array element %d: %w", i, err)
		}
		items = append(items, v)
	}
	return Value{Kind: MarkerStrictArray, StrictArrayItems: items}, nil
}

func (d *Decoder) decodeDate() (Value, error) {
	bits, err := d.c.ReadU32BE()
	if err != nil {
		return Value{}, err
	}
	hi := uint64(bits)
	lo, err := d.c.ReadU32BE()
	if err != nil {
		return Value{}, err
	}
	millis := math.Float64frombits(hi<<32 | uint64(lo))
	tz, err := d.c.ReadU16BE()
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: MarkerDate, DateMillis: millis, DateTZOffset: int16(tz)}, nil
}
