package flv

import (
	"bufio"
	"errors"
	"io"

	"github.com/strevio/strev/internal/bytesutil"
)

// maxTagDataSize is the sanity ceiling on a single tag's data_size field.
const maxTagDataSize = 16 * 1024 * 1024

// resyncBudget bounds how many bytes Demuxer will skip while hunting for a
// plausible tag boundary after a parse error, before giving up with
// ErrResyncFailed.
const resyncBudget = 4 * 1024 * 1024

// Stats reports demuxer-observed counters, including how close the stream
// came to ErrResyncFailed — a supplement beyond the distilled spec, which
// only defines the terminal failure.
type Stats struct {
	TagsRead          int
	BytesRead         int64
	ResyncAttempts    int
	BytesSkippedTotal int
}

// Demuxer reads a byte stream and yields a sequence of Data values via
// repeated calls to Next. It never interprets tag payloads beyond what
// Data.IsKeyFrame needs.
type Demuxer struct {
	r       *bufio.Reader
	started bool
	stats   Stats

	// resyncedType, when non-nil, is a tag-type byte already consumed
	// during resync; the next tag read treats it as byte 0 of the 11-byte
	// tag header instead of re-reading it, and skips the previous-tag-size
	// field the stream no longer has aligned.
	resyncedType *byte
}

// NewDemuxer wraps r for FLV demuxing.
func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{r: bufio.NewReaderSize(r, 64*1024)}
}

// Stats returns a snapshot of the demuxer's running counters.
func (d *Demuxer) Stats() Stats { return d.stats }

// LooksLikeFLV reports whether head (the first few bytes of an input body)
// carries the FLV signature the demuxer's header reader requires.
func LooksLikeFLV(head []byte) bool {
	return len(head) >= 3 && head[0] == 'F' && head[1] == 'L' && head[2] == 'V'
}

// Next returns the next Data item, or io.EOF when the stream is exhausted
// cleanly (that is, after the last tag's trailing previous-tag-size field).
func (d *Demuxer) Next() (Data, error) {
	if !d.started {
		d.started = true
		return d.readHeader()
	}
	return d.readTagFrame()
}

func (d *Demuxer) readHeader() (Data, error) {
	buf := make([]byte, 9)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Data{}, &ErrIncompleteData{}
		}
		return Data{}, err
	}
	d.stats.BytesRead += 9

	if buf[0] != 'F' || buf[1] != 'L' || buf[2] != 'V' {
		return Data{}, &ErrInvalidHeader{}
	}
	flags := buf[4]
	h := Header{
		Version:    buf[3],
		HasAudio:   flags&0x04 != 0,
		HasVideo:   flags&0x01 != 0,
		DataOffset: uint32(buf[5])<<24 | uint32(buf[6])<<16 | uint32(buf[7])<<8 | uint32(buf[8]),
	}
	return NewHeaderData(h), nil
}

// readTagFrame reads the 4-byte previous-tag-size, then one tag. On a
// parse error it attempts resynchronization before surfacing ErrResyncFailed.
func (d *Demuxer) readTagFrame() (Data, error) {
	for {
		data, err := d.tryReadOneTag()
		if err == nil {
			return data, nil
		}
		if errors.Is(err, io.EOF) {
			return Data{}, io.EOF
		}
		if _, incomplete := err.(*ErrIncompleteData); incomplete {
			return Data{}, err
		}

		skipped, resyncErr := d.resync()
		d.stats.ResyncAttempts++
		d.stats.BytesSkippedTotal += skipped
		if resyncErr != nil {
			return Data{}, resyncErr
		}
	}
}

func (d *Demuxer) tryReadOneTag() (Data, error) {
	var tagType uint8
	if d.resyncedType != nil {
		tagType = *d.resyncedType
		d.resyncedType = nil
	} else {
		prevSizeBuf := make([]byte, 4)
		if _, err := io.ReadFull(d.r, prevSizeBuf); err != nil {
			if errors.Is(err, io.EOF) {
				return Data{}, io.EOF
			}
			return Data{}, &ErrIncompleteData{}
		}
		d.stats.BytesRead += 4

		b, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Data{}, io.EOF
			}
			return Data{}, &ErrIncompleteData{}
		}
		d.stats.BytesRead++
		tagType = b
	}

	switch TagType(tagType) {
	case TagTypeAudio, TagTypeVideo, TagTypeScript:
	default:
		return Data{}, &ErrInvalidTagType{Type: tagType}
	}

	rest := make([]byte, 10)
	if _, err := io.ReadFull(d.r, rest); err != nil {
		return Data{}, &ErrIncompleteData{}
	}
	d.stats.BytesRead += 10

	dataSize := uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2])
	if dataSize > maxTagDataSize {
		return Data{}, &ErrTagTooLarge{Size: dataSize}
	}

	tsLo := uint32(rest[3])<<16 | uint32(rest[4])<<8 | uint32(rest[5])
	tsHi := uint32(rest[6])
	timestamp := tsHi<<24 | tsLo

	streamID := uint32(rest[7])<<16 | uint32(rest[8])<<8 | uint32(rest[9])

	payload := make([]byte, dataSize)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Data{}, &ErrIncompleteData{}
	}
	d.stats.BytesRead += int64(dataSize)
	d.stats.TagsRead++

	return NewTagData(Tag{
		Type:      TagType(tagType),
		Timestamp: timestamp,
		StreamID:  streamID,
		Payload:   bytesutil.ByteView(payload),
	}), nil
}

// resync skips forward byte-by-byte looking for a byte that is a plausible
// tag-type value, bounded by resyncBudget. The found byte is remembered as
// the first byte of the next tag header; the 4-byte previous-tag-size field
// is presumed consumed by the corrupt data already skipped.
func (d *Demuxer) resync() (int, error) {
	skipped := 0
	for skipped < resyncBudget {
		b, err := d.r.ReadByte()
		if err != nil {
			return skipped, &ErrResyncFailed{BytesSkipped: skipped}
		}
		skipped++
		switch TagType(b) {
		case TagTypeAudio, TagTypeVideo, TagTypeScript:
			d.resyncedType = &b
			return skipped, nil
		}
	}
	return skipped, &ErrResyncFailed{BytesSkipped: skipped}
}
