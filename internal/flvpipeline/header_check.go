package flvpipeline

import (
	"github.com/strevio/strev/internal/bytesutil"
	"github.com/strevio/strev/internal/flv"
)

// headerCheckState tracks whether the stage has seen a usable stream start.
type headerCheckState uint8

const (
	stateAwaitingHeader headerCheckState = iota
	stateStreaming
	stateFatal
)

// reasonReconnect marks an EndOfSequence boundary raised when a second
// Header arrives mid-stream: the source reconnected and restarted its own
// stream, so downstream treats it as a new sequence rather than a splice.
// Shared with time-consistency, the other stage that special-cases this.
const reasonReconnect byte = 3

// headerCheck is the first pipeline stage (§4.F step 1): it enforces that
// every downstream stage can assume a Header arrived before any Tag. A
// stream that starts with tag data is either repaired by synthesizing a
// minimal header (allow_synth_header) or rejected outright.
type headerCheck struct {
	state      headerCheckState
	allowSynth bool
}

// newHeaderCheck builds the header-check stage.
func newHeaderCheck(allowSynth bool) *headerCheck {
	return &headerCheck{allowSynth: allowSynth}
}

func (h *headerCheck) Process(item flv.Data, emit emitFunc) error {
	switch h.state {
	case stateFatal:
		return &ErrFatalMissingHeader{}
	case stateAwaitingHeader:
		if item.Kind == flv.DataKindHeader {
			h.state = stateStreaming
			return emit(item)
		}
		if !h.allowSynth {
			h.state = stateFatal
			return &ErrFatalMissingHeader{}
		}
		h.state = stateStreaming
		if err := emit(flv.NewHeaderData(synthHeader())); err != nil {
			return err
		}
		return emit(item)
	default: // stateStreaming
		if item.Kind == flv.DataKindHeader {
			if err := emit(flv.NewEndOfSequence(bytesutil.ByteView{reasonReconnect})); err != nil {
				return err
			}
		}
		return emit(item)
	}
}

func (h *headerCheck) Finish(emit emitFunc) error { return nil }

func (h *headerCheck) Name() string { return "header-check" }

// synthHeader builds a minimal FLV header for streams that start mid-tag;
// HasAudio/HasVideo are best-effort true since the real flags are unknowable
// without a header tag to read them from.
func synthHeader() flv.Header {
	return flv.Header{Version: 1, HasAudio: true, HasVideo: true, DataOffset: 9}
}
