package flvpipeline

import (
	"sort"

	"github.com/strevio/strev/internal/codec"
	"github.com/strevio/strev/internal/flv"
)

// gopSort is pipeline stage 3 (§4.F step 3): buffers tags from one keyframe
// up to (but excluding) the next, then emits the completed GOP in a fixed
// order: the current video sequence header (only if it changed since the
// last GOP emitted one), the current audio sequence header (same rule), the
// keyframe, then the rest of the GOP's tags sorted stably by timestamp.
// Before the first keyframe, sequence headers are held and emitted at the
// head of the first GOP as above; every other tag seen before it (such as
// the placeholder script tag) passes straight through.
type gopSort struct {
	pendingKeyframe *flv.Data
	pendingRest     []flv.Data

	lastVideoSeq *flv.Data
	lastAudioSeq *flv.Data
	sentVideoSeq *flv.Data
	sentAudioSeq *flv.Data
}

func newGOPSort() *gopSort { return &gopSort{} }

func (g *gopSort) Process(item flv.Data, emit emitFunc) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		if err := g.flush(emit); err != nil {
			return err
		}
		g.sentVideoSeq = nil
		g.sentAudioSeq = nil
		g.lastVideoSeq = nil
		g.lastAudioSeq = nil
		return emit(item)
	}

	switch item.Tag.Type {
	case flv.TagTypeVideo:
		if codec.IsSequenceHeader(item.Tag.Payload) {
			// Sequence headers never land in pendingRest: they are re-emitted
			// at the head of whichever GOP they apply to, not at their own
			// position in the stream.
			cp := item
			g.lastVideoSeq = &cp
			return nil
		}
		if codec.IsKeyFrame(item.Tag.Payload) {
			if err := g.flush(emit); err != nil {
				return err
			}
			cp := item
			g.pendingKeyframe = &cp
			return nil
		}
	case flv.TagTypeAudio:
		if codec.IsAudioSequenceHeader(item.Tag.Payload) {
			cp := item
			g.lastAudioSeq = &cp
			return nil
		}
	}
	return g.bufferOrPass(item, emit)
}

// bufferOrPass buffers item into the in-progress GOP, or passes it straight
// through if no keyframe has opened a GOP yet.
func (g *gopSort) bufferOrPass(item flv.Data, emit emitFunc) error {
	if g.pendingKeyframe == nil {
		return emit(item)
	}
	g.pendingRest = append(g.pendingRest, item)
	return nil
}

// flush emits the GOP accumulated so far, if any, in prescribed order.
func (g *gopSort) flush(emit emitFunc) error {
	if g.pendingKeyframe == nil {
		return nil
	}
	if g.lastVideoSeq != nil && g.lastVideoSeq != g.sentVideoSeq {
		if err := emit(*g.lastVideoSeq); err != nil {
			return err
		}
		g.sentVideoSeq = g.lastVideoSeq
	}
	if g.lastAudioSeq != nil && g.lastAudioSeq != g.sentAudioSeq {
		if err := emit(*g.lastAudioSeq); err != nil {
			return err
		}
		g.sentAudioSeq = g.lastAudioSeq
	}
	if err := emit(*g.pendingKeyframe); err != nil {
		return err
	}
	sort.SliceStable(g.pendingRest, func(i, j int) bool {
		return g.pendingRest[i].Tag.Timestamp < g.pendingRest[j].Tag.Timestamp
	})
	for _, t := range g.pendingRest {
		if err := emit(t); err != nil {
			return err
		}
	}
	g.pendingKeyframe = nil
	g.pendingRest = nil
	return nil
}

func (g *gopSort) Finish(emit emitFunc) error { return g.flush(emit) }

func (g *gopSort) Name() string { return "gop-sort" }
