package flvpipeline

import (
	"time"

	"github.com/strevio/strev/internal/bytesutil"
	"github.com/strevio/strev/internal/codec"
	"github.com/strevio/strev/internal/flv"
)

// splitReasonSize/splitReasonDuration mark why a boundary was cut, carried
// as the EndOfSequence marker byte for the writer/logging to report.
const (
	splitReasonSize     byte = 1
	splitReasonDuration byte = 2
)

// split is pipeline stage 8 (§4.F step 8): tracks bytes and duration written
// to the current output file and, once either configured ceiling is
// exceeded, waits for the next keyframe (when require_keyframe_at_split is
// set) before cutting — a non-keyframe tag that pushes the file over the
// limit is still written to the current file, since cutting mid-GOP would
// produce an unplayable fragment. A cut injects EndOfSequence, then a fresh
// Header, the latest video/audio sequence headers, and a new placeholder
// onMetaData, before the triggering tag.
type split struct {
	maxBytes        int64
	maxDuration     time.Duration
	requireKeyframe bool
	maxKeyframes    int

	bytesInFile   int64
	haveStart     bool
	startTS       uint32
	overThreshold bool
	reason        byte

	header       flv.Header
	lastVideoSeq *flv.Data
	lastAudioSeq *flv.Data
}

func newSplit(maxBytes int64, maxDuration time.Duration, requireKeyframe bool, maxKeyframes int) *split {
	return &split{
		maxBytes:        maxBytes,
		maxDuration:     maxDuration,
		requireKeyframe: requireKeyframe,
		maxKeyframes:    maxKeyframes,
	}
}

func (s *split) Process(item flv.Data, emit emitFunc) error {
	switch item.Kind {
	case flv.DataKindHeader:
		s.resetFile()
		s.header = item.Header
		return emit(item)
	case flv.DataKindEndOfSequence:
		return emit(item)
	}

	switch item.Tag.Type {
	case flv.TagTypeVideo:
		if codec.IsSequenceHeader(item.Tag.Payload) {
			cp := item
			s.lastVideoSeq = &cp
		}
	case flv.TagTypeAudio:
		if codec.IsAudioSequenceHeader(item.Tag.Payload) {
			cp := item
			s.lastAudioSeq = &cp
		}
	}

	isKey := item.IsKeyFrame()
	canCutHere := isKey || !s.requireKeyframe
	if s.overThreshold && canCutHere {
		if err := s.cut(emit); err != nil {
			return err
		}
	}

	if err := emit(item); err != nil {
		return err
	}
	s.account(item)
	s.checkThreshold(item)
	return nil
}

// cut closes out the current file and reopens a fresh one: EndOfSequence,
// Header, the carried-forward sequence headers, and a new placeholder
// onMetaData.
func (s *split) cut(emit emitFunc) error {
	if err := emit(flv.NewEndOfSequence(bytesutil.ByteView{s.reason})); err != nil {
		return err
	}
	s.resetFile()
	if err := emit(flv.NewHeaderData(s.header)); err != nil {
		return err
	}
	s.account(flv.NewHeaderData(s.header))
	if s.lastVideoSeq != nil {
		if err := emit(*s.lastVideoSeq); err != nil {
			return err
		}
		s.account(*s.lastVideoSeq)
	}
	if s.lastAudioSeq != nil {
		if err := emit(*s.lastAudioSeq); err != nil {
			return err
		}
		s.account(*s.lastAudioSeq)
	}
	payload, err := flv.PlaceholderMetadata(s.maxKeyframes).Encode()
	if err != nil {
		return err
	}
	meta := flv.NewTagData(flv.Tag{Type: flv.TagTypeScript, Timestamp: 0, Payload: bytesutil.ByteView(payload)})
	if err := emit(meta); err != nil {
		return err
	}
	s.account(meta)
	return nil
}

func (s *split) resetFile() {
	s.bytesInFile = 0
	s.haveStart = false
	s.overThreshold = false
	s.reason = 0
}

func (s *split) account(item flv.Data) {
	s.bytesInFile += int64(item.Size())
	if item.Kind == flv.DataKindTag {
		if !s.haveStart {
			s.startTS = item.Tag.Timestamp
			s.haveStart = true
		}
	}
}

func (s *split) checkThreshold(item flv.Data) {
	if s.maxBytes > 0 && s.bytesInFile > s.maxBytes {
		s.overThreshold = true
		s.reason = splitReasonSize
		return
	}
	if s.maxDuration > 0 && s.haveStart && item.Kind == flv.DataKindTag {
		elapsed := time.Duration(item.Tag.Timestamp-s.startTS) * time.Millisecond
		if elapsed >= s.maxDuration {
			s.overThreshold = true
			s.reason = splitReasonDuration
		}
	}
}

func (s *split) Finish(emit emitFunc) error { return nil }

func (s *split) Name() string { return "split" }
