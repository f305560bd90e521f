package flvpipeline

import (
	"github.com/strevio/strev/internal/codec"
	"github.com/strevio/strev/internal/flv"
)

// timing repair strategies, selected by config.PipelineConfig.TimingRepairStrategy.
const (
	strategyStrict   = "strict"
	strategyRelative = "relative"
	strategySmooth   = "smooth"
)

// smoothMaxGapMs/smoothExpectedStepMs bound the "smooth" strategy's forward
// jump clamp. Not exposed as configuration: a live capture's expected
// inter-frame spacing isn't knowable up front, so a fixed ~30fps cadence
// with a generous 5s gap ceiling is used as a sane default.
const (
	smoothMaxGapMs      uint32 = 5000
	smoothExpectedStepMs uint32 = 33
)

// timingRepair is pipeline stage 4 (§4.F step 4): corrects non-monotonic or
// wildly discontinuous tag timestamps. Sequence headers and script tags
// carry no independent timing signal, so they are buffered until the next
// picture tag's repaired timestamp is known and stamped with that same
// value, then emitted ahead of it.
type timingRepair struct {
	strategy string
	started  bool
	lastTS   uint32
	offset   uint32
	pending  []flv.Data
}

func newTimingRepair(strategy string) *timingRepair {
	return &timingRepair{strategy: strategy}
}

func (t *timingRepair) Process(item flv.Data, emit emitFunc) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		if err := t.flushPending(t.lastTS, emit); err != nil {
			return err
		}
		t.started = false
		t.offset = 0
		return emit(item)
	}

	if !isPictureTag(item) {
		t.pending = append(t.pending, item)
		return nil
	}

	newTS, err := t.repair(item.Tag.Timestamp)
	if err != nil {
		return err
	}
	item.Tag.Timestamp = newTS
	if err := t.flushPending(newTS, emit); err != nil {
		return err
	}
	t.lastTS = newTS
	t.started = true
	return emit(item)
}

// repair computes the corrected timestamp for a picture tag per strategy.
//
// The backward-jump correction sets offset to last_ts+1 (rather than
// incrementing it by last_ts-raw+1): a jump tag always lands exactly one
// past the previous timestamp, and that same offset then carries forward
// additively onto every following raw timestamp until the next jump.
func (t *timingRepair) repair(raw uint32) (uint32, error) {
	switch t.strategy {
	case strategyStrict:
		if t.started && raw < t.lastTS {
			return 0, &ErrTimestampBackwards{Previous: t.lastTS, Got: raw}
		}
		return raw, nil
	case strategySmooth:
		adjusted := raw + t.offset
		if t.started && adjusted <= t.lastTS {
			t.offset = t.lastTS + 1
			adjusted = raw + t.offset
		} else if t.started && adjusted-t.lastTS > smoothMaxGapMs {
			clamped := t.lastTS + smoothExpectedStepMs
			t.offset += clamped - adjusted
			adjusted = clamped
		}
		return adjusted, nil
	default: // strategyRelative
		adjusted := raw + t.offset
		if t.started && adjusted <= t.lastTS {
			t.offset = t.lastTS + 1
			adjusted = raw + t.offset
		}
		return adjusted, nil
	}
}

// flushPending stamps every buffered non-picture tag with ts and emits them
// in original order, ahead of the picture tag that resolved their timing.
func (t *timingRepair) flushPending(ts uint32, emit emitFunc) error {
	pending := t.pending
	t.pending = nil
	for _, p := range pending {
		p.Tag.Timestamp = ts
		if err := emit(p); err != nil {
			return err
		}
	}
	return nil
}

func (t *timingRepair) Finish(emit emitFunc) error {
	return t.flushPending(t.lastTS, emit)
}

func (t *timingRepair) Name() string { return "timing-repair" }

// isPictureTag reports whether item carries actual frame data rather than a
// sequence header or script command.
func isPictureTag(item flv.Data) bool {
	if item.Kind != flv.DataKindTag {
		return false
	}
	switch item.Tag.Type {
	case flv.TagTypeVideo:
		return !codec.IsSequenceHeader(item.Tag.Payload)
	case flv.TagTypeAudio:
		return !codec.IsAudioSequenceHeader(item.Tag.Payload)
	default:
		return false
	}
}
