package flvpipeline

import (
	"github.com/strevio/strev/internal/bytesutil"
	"github.com/strevio/strev/internal/flv"
)

// scriptFiller is pipeline stage 7 (§4.F step 7): inserts a placeholder
// onMetaData script tag right before the first tag of each file, once it is
// known there is at least one. A Header followed by nothing (the stream
// ends, or a split/reconnect immediately follows) gets no metadata tag at
// all — there is nothing yet to describe. The placeholder is sized for
// maxKeyframes keyframe slots so the writer's close-time patch (filling in
// the real duration, resolution, and keyframe index) never has to grow the
// file; see flv.PlaceholderMetadata.
type scriptFiller struct {
	maxKeyframes int
	inserted     bool
}

func newScriptFiller(maxKeyframes int) *scriptFiller {
	return &scriptFiller{maxKeyframes: maxKeyframes}
}

func (s *scriptFiller) Process(item flv.Data, emit emitFunc) error {
	if item.Kind == flv.DataKindHeader {
		s.inserted = false
		return emit(item)
	}
	if item.Kind == flv.DataKindTag && !s.inserted {
		s.inserted = true
		if err := s.insertPlaceholder(emit); err != nil {
			return err
		}
	}
	return emit(item)
}

func (s *scriptFiller) insertPlaceholder(emit emitFunc) error {
	payload, err := flv.PlaceholderMetadata(s.maxKeyframes).Encode()
	if err != nil {
		return err
	}
	return emit(flv.NewTagData(flv.Tag{
		Type:      flv.TagTypeScript,
		Timestamp: 0,
		Payload:   bytesutil.ByteView(payload),
	}))
}

func (s *scriptFiller) Finish(emit emitFunc) error { return nil }

func (s *scriptFiller) Name() string { return "script-filler" }
