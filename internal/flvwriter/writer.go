// Package flvwriter turns the flvpipeline's output stream of flv.Data items
// into actual files on disk: tag framing, filename templating, and the
// close-time onMetaData patch that fills in duration, resolution, and the
// keyframe index the placeholder reserved space for.
package flvwriter

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/strevio/strev/internal/codec"
	"github.com/strevio/strev/internal/config"
	"github.com/strevio/strev/internal/flv"
	"github.com/strevio/strev/internal/observability"
)

// writerState is the file lifecycle: Idle (no file open) -> Open (actively
// appending tags) -> Closing (patch and fsync in progress) -> Idle.
type writerState uint8

const (
	stateIdle writerState = iota
	stateOpen
	stateClosing
)

// sweepBufferSize bounds the chunk size used to shift trailing file content
// when a real onMetaData encoding doesn't match the placeholder's reserved
// size byte-for-byte (keyframe count exceeded the reserved slot count).
const sweepBufferSize = 64 * 1024

// Stats summarizes one output file's content as it is written, and is what
// Close() turns into the final onMetaData patch.
type Stats struct {
	Path            string
	TagCount        int
	BytesWritten    int64
	FirstTimestamp  uint32
	LastTimestamp   uint32
	HasAudio        bool
	HasVideo        bool
	Width           int
	Height          int
	VideoCodecID    int
	AudioCodecID    int
	KeyframeTimes   []float64
	KeyframeFilePos []int64
}

// OnProgressFunc is invoked after every tag is written, for live progress
// reporting (file size, duration so far, tag counts).
type OnProgressFunc func(Stats)

// Writer owns one output file's full lifecycle: open, per-tag append,
// close-time metadata patch.
type Writer struct {
	cfg          config.WriterConfig
	maxKeyframes int
	streamID     string
	seq          int
	onProgress   OnProgressFunc

	state       writerState
	file        *os.File
	buf         *bufio.Writer
	offset      int64
	lastTagSize uint32
	haveHeader  bool
	header      flv.Header

	scriptTagOffset     int64 // body offset of the placeholder payload, -1 if none written
	placeholderTagSize  int64 // total on-disk size of the placeholder tag (4+11+len(payload))
	placeholderPayloadN int

	stats Stats
}

// New builds a Writer; maxKeyframes must match the script-filler stage's
// placeholder sizing so the close-time patch fits without resizing the file.
func New(cfg config.WriterConfig, maxKeyframes int, streamID string, onProgress OnProgressFunc) *Writer {
	return &Writer{cfg: cfg, maxKeyframes: maxKeyframes, streamID: streamID, onProgress: onProgress}
}

// Write consumes one flvpipeline output item, opening, appending to, or
// closing the current file as directed by its Kind.
func (w *Writer) Write(item flv.Data) error {
	switch item.Kind {
	case flv.DataKindHeader:
		if w.state == stateOpen {
			if err := w.Close(); err != nil {
				return err
			}
		}
		return w.open(item.Header)
	case flv.DataKindEndOfSequence:
		return w.Close()
	default:
		return w.writeTag(item.Tag)
	}
}

func (w *Writer) open(header flv.Header) error {
	w.seq++
	name := ExpandName(w.cfg.NameTemplate, time.Now(), w.seq, w.streamID)
	path := w.cfg.OutputPath(name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("flvwriter: create %s: %w", path, err)
	}
	observability.WriterFilesCreatedTotal.Inc()
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.state = stateOpen
	w.offset = 0
	w.lastTagSize = 0
	w.header = header
	w.scriptTagOffset = -1
	w.stats = Stats{Path: path, HasAudio: header.HasAudio, HasVideo: header.HasVideo}

	if err := w.writeHeader(header); err != nil {
		return err
	}
	return w.writePrevTagSize(0)
}

func (w *Writer) writeHeader(h flv.Header) error {
	var flags byte
	if h.HasAudio {
		flags |= 0x04
	}
	if h.HasVideo {
		flags |= 0x01
	}
	buf := []byte{'F', 'L', 'V', h.Version, flags, 0, 0, 0, 9}
	n, err := w.buf.Write(buf)
	w.offset += int64(n)
	return err
}

func (w *Writer) writePrevTagSize(size uint32) error {
	b := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	n, err := w.buf.Write(b)
	w.offset += int64(n)
	return err
}

func (w *Writer) writeTag(t flv.Tag) error {
	if w.state != stateOpen {
		return fmt.Errorf("flvwriter: write tag with no file open")
	}
	if t.Type == flv.TagTypeScript && w.scriptTagOffset < 0 {
		w.scriptTagOffset = w.offset + 11
		w.placeholderPayloadN = len(t.Payload)
		w.placeholderTagSize = int64(t.Size())
	}

	header := []byte{
		byte(t.Type),
		byte(len(t.Payload) >> 16), byte(len(t.Payload) >> 8), byte(len(t.Payload)),
		byte(t.Timestamp >> 16), byte(t.Timestamp >> 8), byte(t.Timestamp), byte(t.Timestamp >> 24),
		0, 0, 0,
	}
	n, err := w.buf.Write(header)
	w.offset += int64(n)
	if err != nil {
		return err
	}
	n, err = w.buf.Write(t.Payload)
	w.offset += int64(n)
	if err != nil {
		return err
	}

	tagSize := uint32(t.Size() - 4) // on-disk tag footprint excluding the trailing prev-size field
	if err := w.writePrevTagSize(tagSize); err != nil {
		return err
	}

	w.recordStats(t)
	observability.WriterTagsWrittenTotal.Inc()
	if w.onProgress != nil {
		w.onProgress(w.stats)
	}
	return nil
}

func (w *Writer) recordStats(t flv.Tag) {
	if w.stats.TagCount == 0 {
		w.stats.FirstTimestamp = t.Timestamp
	}
	w.stats.TagCount++
	w.stats.LastTimestamp = t.Timestamp
	w.stats.BytesWritten = w.offset

	if t.Type != flv.TagTypeVideo {
		return
	}
	if codec.IsSequenceHeader(t.Payload) && w.stats.Width == 0 {
		if res, err := codec.ExtractResolution(t.Payload); err == nil {
			w.stats.Width, w.stats.Height = res.Width, res.Height
		}
		if h, err := codec.ParseVideoTagHeader(t.Payload); err == nil {
			w.stats.VideoCodecID = int(h.CodecID)
		}
	}
	if codec.IsKeyFrame(t.Payload) {
		tagStart := w.offset - int64(t.Size())
		w.stats.KeyframeTimes = append(w.stats.KeyframeTimes, float64(t.Timestamp)/1000.0)
		w.stats.KeyframeFilePos = append(w.stats.KeyframeFilePos, tagStart)
	}
}

// Close finalizes the current file: patches the placeholder onMetaData (if
// one was written) with real values, flushes, and fsyncs.
func (w *Writer) Close() error {
	if w.state != stateOpen {
		return nil
	}
	w.state = stateClosing
	defer func() { w.state = stateIdle }()

	if err := w.buf.Flush(); err != nil {
		return err
	}

	if w.scriptTagOffset >= 0 {
		if err := w.patchMetadata(); err != nil {
			return err
		}
	}

	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

func (w *Writer) patchMetadata() error {
	durationSec := float64(w.stats.LastTimestamp-w.stats.FirstTimestamp) / 1000.0
	meta := flv.Metadata{
		Duration:        durationSec,
		FileSize:        float64(w.offset),
		Width:           float64(w.stats.Width),
		Height:          float64(w.stats.Height),
		VideoCodecID:    float64(w.stats.VideoCodecID),
		AudioCodecID:    float64(w.stats.AudioCodecID),
		LastTimestamp:   float64(w.stats.LastTimestamp),
		HasKeyframes:    len(w.stats.KeyframeTimes) > 0,
		KeyframeTimes:   padFloats(w.stats.KeyframeTimes, w.maxKeyframes),
		KeyframeFilePos: padFloats(int64sToFloats(w.stats.KeyframeFilePos), w.maxKeyframes),
	}
	payload, err := meta.Encode()
	if err != nil {
		return err
	}
	if int64(len(payload)) == w.placeholderTagSize-15 {
		return w.overwriteInPlace(w.scriptTagOffset, payload)
	}
	return w.sweepRewrite(w.scriptTagOffset, payload)
}

// overwriteInPlace handles the common case: the real metadata encodes to
// exactly the placeholder's reserved size, so the patch is a pure overwrite.
func (w *Writer) overwriteInPlace(offset int64, payload []byte) error {
	if _, err := w.file.WriteAt(payload, offset); err != nil {
		return err
	}
	return nil
}

// sweepRewrite handles the rare case where the real metadata is larger than
// reserved (more keyframes than maxKeyframes anticipated): it shifts every
// byte after the placeholder forward/backward in sweepBufferSize chunks to
// make room, then writes the new payload.
func (w *Writer) sweepRewrite(offset int64, payload []byte) error {
	oldLen := int64(w.placeholderPayloadN)
	newLen := int64(len(payload))
	delta := newLen - oldLen
	if delta == 0 {
		return w.overwriteInPlace(offset, payload)
	}

	oldEnd := offset + oldLen
	fileEnd := w.offset
	buf := make([]byte, sweepBufferSize)

	if delta > 0 {
		for readPos := fileEnd; readPos > oldEnd; {
			chunk := int64(len(buf))
			if readPos-oldEnd < chunk {
				chunk = readPos - oldEnd
			}
			readPos -= chunk
			if _, err := w.file.ReadAt(buf[:chunk], readPos); err != nil {
				return err
			}
			if _, err := w.file.WriteAt(buf[:chunk], readPos+delta); err != nil {
				return err
			}
		}
	} else {
		for readPos := oldEnd; readPos < fileEnd; {
			chunk := int64(len(buf))
			if fileEnd-readPos < chunk {
				chunk = fileEnd - readPos
			}
			if _, err := w.file.ReadAt(buf[:chunk], readPos); err != nil {
				return err
			}
			if _, err := w.file.WriteAt(buf[:chunk], readPos+delta); err != nil {
				return err
			}
			readPos += chunk
		}
	}

	if err := w.file.Truncate(fileEnd + delta); err != nil {
		return err
	}
	_, err := w.file.WriteAt(payload, offset)
	return err
}

func padFloats(v []float64, n int) []float64 {
	if len(v) >= n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}

func int64sToFloats(v []int64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
