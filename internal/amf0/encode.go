package amf0

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Encoder serializes AMF0 values into a growable byte buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the bytes written so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len reports the number of bytes written so far.
func (e *Encoder) Len() int { return e.buf.Len() }

func (e *Encoder) writeU8(b byte)       { e.buf.WriteByte(b) }
func (e *Encoder) writeU16BE(v uint16)  { _ = binary.Write(&e.buf, binary.BigEndian, v) }
func (e *Encoder) writeU32BE(v uint32)  { _ = binary.Write(&e.buf, binary.BigEndian, v) }
func (e *Encoder) writeF64BE(v float64) { _ = binary.Write(&e.buf, binary.BigEndian, math.Float64bits(v)) }

func (e *Encoder) writeShortString(s string) error {
	if len(s) > maxNormalStringLen {
		return &NormalStringTooLongError{Len: len(s)}
	}
	e.writeU16BE(uint16(len(s)))
	e.buf.WriteString(s)
	return nil
}

// Encode appends v to the buffer, marker included.
func (e *Encoder) Encode(v Value) error {
	e.writeU8(byte(v.Kind))
	return e.encodeBody(v)
}

func (e *Encoder) encodeBody(v Value) error {
	switch v.Kind {
	case MarkerNumber:
		e.writeF64BE(v.Number)
		return nil
	case MarkerBoolean:
		if v.Boolean {
			e.writeU8(1)
		} else {
			e.writeU8(0)
		}
		return nil
	case MarkerString:
		return e.writeShortString(v.Str)
	case MarkerLongString:
		e.writeU32BE(uint32(len(v.Str)))
		e.buf.WriteString(v.Str)
		return nil
	case MarkerObject:
		return e.encodeProperties(v.Properties)
	case MarkerECMAArray:
		e.writeU32BE(uint32(len(v.Properties)))
		return e.encodeProperties(v.Properties)
	case MarkerStrictArray:
		e.writeU32BE(uint32(len(v.StrictArrayItems)))
		for _, item := range v.StrictArrayItems {
			if err := e.Encode(item); err != nil {
				return err
			}
		}
		return nil
	case MarkerNull, MarkerUndefined:
		return nil
	case MarkerDate:
		e.writeF64BE(v.DateMillis)
		e.writeU16BE(uint16(v.DateTZOffset))
		return nil
	default:
		return &UnsupportedTypeError{Marker: v.Kind}
	}
}

func (e *Encoder) encodeProperties(props []Property) error {
	for _, p := range props {
		if err := e.writeShortString(p.Key); err != nil {
			return err
		}
		if err := e.Encode(p.Value); err != nil {
			return err
		}
	}
	e.buf.Write(objectEndSentinel[:])
	return nil
}

// Marshal is a convenience wrapper returning the encoded bytes of a single
// value.
func Marshal(v Value) ([]byte, error) {
	e := NewEncoder()
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
