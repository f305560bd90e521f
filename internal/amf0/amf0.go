// Package amf0 encodes and decodes Action Message Format v0 values, the
// binary serialization used by FLV script-data (onMetaData) tags.
package amf0

import "fmt"

// Marker is the one-byte type tag that precedes every AMF0 value.
type Marker uint8

// AMF0 markers, per the Action Message Format v0 spec.
const (
	MarkerNumber      Marker = 0x00
	MarkerBoolean     Marker = 0x01
	MarkerString      Marker = 0x02
	MarkerObject      Marker = 0x03
	MarkerNull        Marker = 0x05
	MarkerUndefined   Marker = 0x06
	MarkerECMAArray   Marker = 0x08
	MarkerObjectEnd   Marker = 0x09
	MarkerStrictArray Marker = 0x0A
	MarkerDate        Marker = 0x0B
	MarkerLongString  Marker = 0x0C
)

// objectEndSentinel is the 3-byte sentinel ("" + 0x09) that terminates Object
// and ECMAArray property lists.
var objectEndSentinel = [3]byte{0x00, 0x00, byte(MarkerObjectEnd)}

// maxNormalStringLen is the largest length a regular String value may carry;
// longer strings must use LongString.
const maxNormalStringLen = 0xFFFF

// Property is a single ordered key/value pair of an Object or ECMAArray.
type Property struct {
	Key   string
	Value Value
}

// Value is the sum type of every representable AMF0 value. Exactly one of
// the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind       Marker
	Number     float64
	Boolean    bool
	Str        string // String or LongString
	Properties []Property
	// StrictArrayItems holds StrictArray elements in order.
	StrictArrayItems []Value
	// DateMillis is milliseconds since epoch; DateTZOffset the minutes-west
	// of UTC field AMF0 carries but which implementations ignore.
	DateMillis   float64
	DateTZOffset int16
}

// Num constructs a Number value.
func Num(v float64) Value { return Value{Kind: MarkerNumber, Number: v} }

// Bool constructs a Boolean value.
func Bool(v bool) Value { return Value{Kind: MarkerBoolean, Boolean: v} }

// Str constructs a String value, using LongString automatically when the
// UTF-8 byte length exceeds 65535.
func Str(v string) Value {
	if len(v) > maxNormalStringLen {
		return Value{Kind: MarkerLongString, Str: v}
	}
	return Value{Kind: MarkerString, Str: v}
}

// Obj constructs an Object value from ordered properties.
func Obj(props ...Property) Value {
	return Value{Kind: MarkerObject, Properties: props}
}

// ECMAArr constructs an ECMAArray value from ordered properties.
func ECMAArr(props ...Property) Value {
	return Value{Kind: MarkerECMAArray, Properties: props}
}

// StrictArr constructs a StrictArray value.
func StrictArr(items ...Value) Value {
	return Value{Kind: MarkerStrictArray, StrictArrayItems: items}
}

// Null is the AMF0 Null value.
var Null = Value{Kind: MarkerNull}

// Undefined is the AMF0 Undefined value.
var Undefined = Value{Kind: MarkerUndefined}

// Get returns the value for key among Properties, and whether it was found.
func (v Value) Get(key string) (Value, bool) {
	for _, p := range v.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// UnknownMarkerError reports a byte that does not correspond to any AMF0
// marker this decoder understands.
type UnknownMarkerError struct {
	Marker byte
}

func (e *UnknownMarkerError) Error() string {
	return fmt.Sprintf("amf0: unknown marker 0x%02x", e.Marker)
}

// UnsupportedTypeError reports a marker that is recognized but not
// implemented by this decoder/encoder (e.g. Reference, XMLDocument, TypedObject).
type UnsupportedTypeError struct {
	Marker Marker
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("amf0: unsupported type marker 0x%02x", e.Marker)
}

// WrongTypeError reports a next_with_type mismatch: the caller expected one
// marker but the stream held another. The marker byte has already been
// consumed by the time this error is produced (see Decoder.NextWithType).
type WrongTypeError struct {
	Expected, Got Marker
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("amf0: expected marker 0x%02x, got 0x%02x", e.Expected, e.Got)
}

// StringParseError reports a malformed UTF-8/length-prefixed string.
type StringParseError struct {
	Reason string
}

func (e *StringParseError) Error() string {
	return fmt.Sprintf("amf0: string parse error: %s", e.Reason)
}

// NormalStringTooLongError is returned when encoding a String whose byte
// length exceeds 65535 without going through LongString.
type NormalStringTooLongError struct {
	Len int
}

func (e *NormalStringTooLongError) Error() string {
	return fmt.Sprintf("amf0: string of length %d exceeds normal String limit, use LongString", e.Len)
}
