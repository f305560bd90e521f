package flvpipeline

import "github.com/strevio/strev/internal/flv"

// defragment is pipeline stage 2 (§4.F step 2): right after a Header, many
// streams emit a short burst of tags from before the encoder settled (stale
// GOP fragments, partial sequence headers). This stage buffers tags until it
// sees min_fragment_size of them or a video keyframe, whichever comes first,
// then flushes everything buffered and passes every further tag straight
// through untouched. If a new Header arrives before the threshold is met,
// the buffered fragment is discarded as untrustworthy.
type defragment struct {
	minSize int
	buffer  []flv.Data
	flushed bool
}

func newDefragment(minSize int) *defragment {
	return &defragment{minSize: minSize}
}

func (d *defragment) Process(item flv.Data, emit emitFunc) error {
	if item.Kind == flv.DataKindHeader {
		d.buffer = nil
		d.flushed = false
		return emit(item)
	}
	if d.flushed {
		return emit(item)
	}
	d.buffer = append(d.buffer, item)
	if len(d.buffer) >= d.minSize || item.IsKeyFrame() {
		return d.flush(emit)
	}
	return nil
}

func (d *defragment) flush(emit emitFunc) error {
	d.flushed = true
	buf := d.buffer
	d.buffer = nil
	for _, item := range buf {
		if err := emit(item); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes whatever is still buffered at end-of-stream. A short
// trailing stream that never reached the threshold is still real data, not
// a fragment to discard; only a mid-stream Header invalidates the buffer.
func (d *defragment) Finish(emit emitFunc) error {
	if d.flushed {
		return nil
	}
	return d.flush(emit)
}

func (d *defragment) Name() string { return "defragment" }
