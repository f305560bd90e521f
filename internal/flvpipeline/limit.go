package flvpipeline

import (
	"time"

	"github.com/strevio/strev/internal/bytesutil"
	"github.com/strevio/strev/internal/flv"
)

// limitReason marks an EndOfSequence emitted by the limit stage rather than
// split: the absolute ceiling was hit before split ever found a keyframe to
// cut at.
const limitReason byte = 4

// limit is pipeline stage 9 (§4.F step 9): the backstop behind split. When
// require_keyframe_at_split holds a GOP open indefinitely (no keyframe ever
// arrives to cut at) the current file can grow past split's own threshold
// without bound; limit tracks the same bytes/duration-since-last-boundary
// state split does, against higher absolute ceilings, and gives up rather
// than let output grow forever. Reaching either ceiling emits EndOfSequence
// and aborts the run with ErrLimitExceeded, leaving the file the writer
// already has open to be closed with whatever it contains. maxBytes/
// maxDuration <= 0 disables that half of the check.
type limit struct {
	maxBytes    int64
	maxDuration time.Duration

	bytesInFile int64
	haveStart   bool
	startTS     uint32
}

func newLimit(maxBytes int64, maxDuration time.Duration) *limit {
	return &limit{maxBytes: maxBytes, maxDuration: maxDuration}
}

func (l *limit) Process(item flv.Data, emit emitFunc) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		l.reset()
		return emit(item)
	}

	l.bytesInFile += int64(item.Size())
	if !l.haveStart {
		l.startTS = item.Tag.Timestamp
		l.haveStart = true
	}

	if l.maxBytes > 0 && l.bytesInFile > l.maxBytes {
		return l.fail(emit, "bytes", l.maxBytes)
	}
	if l.maxDuration > 0 {
		elapsed := time.Duration(item.Tag.Timestamp-l.startTS) * time.Millisecond
		if elapsed >= l.maxDuration {
			return l.fail(emit, "duration", int64(l.maxDuration))
		}
	}
	return emit(item)
}

func (l *limit) fail(emit emitFunc, reason string, value int64) error {
	if err := emit(flv.NewEndOfSequence(bytesutil.ByteView{limitReason})); err != nil {
		return err
	}
	return &ErrLimitExceeded{Reason: reason, Limit: value}
}

func (l *limit) reset() {
	l.bytesInFile = 0
	l.haveStart = false
}

func (l *limit) Finish(emit emitFunc) error { return nil }

func (l *limit) Name() string { return "limit" }
