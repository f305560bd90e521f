// Package hlspipeline turns a coordinator's ordered HlsData stream into
// output files on disk, format-preserving: TS segments concatenate byte for
// byte, fMP4 segments are written as an init segment followed by its
// fragments, and both honor the same size/duration splitting rules and
// name-template syntax as the FLV writer.
package hlspipeline

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/strevio/strev/internal/config"
	"github.com/strevio/strev/internal/flvwriter"
	"github.com/strevio/strev/internal/hls"
	"github.com/strevio/strev/internal/observability"
)

// Stats summarizes one output file as it is written.
type Stats struct {
	Path           string
	SegmentCount   int
	BytesWritten   int64
	Format         string // "ts" or "fmp4"
	FirstSeq       int64
	LastSeq        int64
	Discontinuities int
}

type OnProgressFunc func(Stats)

// Writer owns one output file's lifecycle across however many HLS segments
// fit under the configured size/duration ceiling.
type Writer struct {
	cfg         config.WriterConfig
	maxBytes    int64
	maxDuration time.Duration
	streamID    string
	onProgress  OnProgressFunc

	seq       int
	file      *os.File
	buf       *bufio.Writer
	stats     Stats
	format    string // locked in from the first data segment of the file
	initBody  []byte // fMP4 init segment, re-emitted at the top of every new file
	bytesInFile int64
	startTime   time.Time
	haveStart   bool
}

// New builds a Writer. maxBytes <= 0 and maxDuration <= 0 both disable
// their respective split trigger.
func New(cfg config.WriterConfig, maxBytes int64, maxDuration time.Duration, streamID string, onProgress OnProgressFunc) *Writer {
	return &Writer{cfg: cfg, maxBytes: maxBytes, maxDuration: maxDuration, streamID: streamID, onProgress: onProgress}
}

// Write consumes one HlsData item in coordinator emission order.
func (w *Writer) Write(item hls.HlsData) error {
	switch item.Kind {
	case hls.SegmentKindEndMarker:
		return w.Close()
	case hls.SegmentKindDiscontinuity:
		if w.file != nil {
			w.stats.Discontinuities++
		}
		return nil
	case hls.SegmentKindM4sInit:
		w.initBody = append([]byte(nil), item.Body...)
		return nil
	}

	if w.file == nil {
		if err := w.open(item); err != nil {
			return err
		}
	} else if w.overThreshold() {
		if err := w.cut(item); err != nil {
			return err
		}
	}

	return w.appendSegment(item)
}

func (w *Writer) open(item hls.HlsData) error {
	w.seq++
	ext := "ts"
	if item.Kind == hls.SegmentKindM4sFragment {
		ext = "mp4"
	}
	name := flvwriter.ExpandNameExt(w.cfg.NameTemplate, time.Now(), w.seq, w.streamID, ext)
	path := w.cfg.OutputPath(name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("hlspipeline: create %s: %w", path, err)
	}
	observability.WriterFilesCreatedTotal.Inc()
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.bytesInFile = 0
	w.haveStart = false
	w.format = "ts"
	if item.Kind == hls.SegmentKindM4sFragment {
		w.format = "fmp4"
	}
	w.stats = Stats{Path: path, Format: w.format, FirstSeq: item.Meta.MediaSequenceNumber}

	if w.format == "fmp4" && len(w.initBody) > 0 {
		n, err := w.buf.Write(w.initBody)
		w.bytesInFile += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) appendSegment(item hls.HlsData) error {
	n, err := w.buf.Write(item.Body)
	w.bytesInFile += int64(n)
	if err != nil {
		return err
	}
	w.stats.SegmentCount++
	w.stats.BytesWritten = w.bytesInFile
	w.stats.LastSeq = item.Meta.MediaSequenceNumber
	observability.WriterTagsWrittenTotal.Inc()

	if !w.haveStart {
		w.startTime = time.Now()
		w.haveStart = true
	}
	if w.onProgress != nil {
		w.onProgress(w.stats)
	}
	return nil
}

func (w *Writer) overThreshold() bool {
	if w.maxBytes > 0 && w.bytesInFile >= w.maxBytes {
		return true
	}
	if w.maxDuration > 0 && w.haveStart && time.Since(w.startTime) >= w.maxDuration {
		return true
	}
	return false
}

// cut closes the current file and opens a fresh one before item is
// appended; segment boundaries are always valid cut points since HLS
// segments (unlike FLV tags) are independently demuxable units.
func (w *Writer) cut(item hls.HlsData) error {
	if err := w.Close(); err != nil {
		return err
	}
	return w.open(item)
}

// Close flushes and closes the current output file, if any.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		w.file = nil
		return fmt.Errorf("hlspipeline: flush %s: %w", w.stats.Path, err)
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("hlspipeline: close %s: %w", w.stats.Path, err)
	}
	return nil
}

// Stats reports the in-progress or last-closed file's statistics.
func (w *Writer) Stats() Stats { return w.stats }
