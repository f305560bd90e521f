package flvpipeline

import (
	"github.com/strevio/strev/internal/bytesutil"
	"github.com/strevio/strev/internal/flv"
)

// continuity modes, selected by config.PipelineConfig.ContinuityMode.
const (
	continuityContinuous = "continuous"
	continuityReset       = "reset"
)

// timeConsistency is pipeline stage 5 (§4.F step 5): handles a Header
// arriving mid-stream, which signals the upstream encoder restarted its own
// timestamp counter (a reconnect, typically). In "continuous" mode the new
// segment's timestamps are rebased to keep counting up from where the prior
// segment left off; in "reset" mode they are rebased to start at zero,
// marking a clean new timeline for whatever file boundary follows.
type timeConsistency struct {
	mode     string
	sawFirst bool
	resolved bool
	offset   int64
	lastTS   uint32
}

func newTimeConsistency(mode string) *timeConsistency {
	return &timeConsistency{mode: mode}
}

func (c *timeConsistency) Process(item flv.Data, emit emitFunc) error {
	switch item.Kind {
	case flv.DataKindHeader:
		if !c.sawFirst {
			c.sawFirst = true
			c.offset = 0
			c.resolved = true
			return emit(item)
		}
		c.resolved = false
		if err := emit(flv.NewEndOfSequence(bytesutil.ByteView{reasonReconnect})); err != nil {
			return err
		}
		return emit(item)
	case flv.DataKindEndOfSequence:
		return emit(item)
	}

	ts := item.Tag.Timestamp
	if !c.resolved {
		switch c.mode {
		case continuityReset:
			c.offset = -int64(ts)
		default: // continuityContinuous
			c.offset = int64(c.lastTS) + 1 - int64(ts)
		}
		c.resolved = true
	}
	newTS := uint32(int64(ts) + c.offset)
	item.Tag.Timestamp = newTS
	c.lastTS = newTS
	return emit(item)
}

func (c *timeConsistency) Finish(emit emitFunc) error { return nil }

func (c *timeConsistency) Name() string { return "time-consistency" }
