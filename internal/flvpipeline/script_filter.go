package flvpipeline

import "github.com/strevio/strev/internal/flv"

// scriptFilter is pipeline stage 6 (§4.F step 6): drops every incoming
// script tag unconditionally. Upstream onMetaData (and any other script
// command) describes the source's own framing, which no longer applies once
// the stream has been re-timed and re-segmented; script-filler downstream
// synthesizes a fresh one per output file instead.
type scriptFilter struct{}

func newScriptFilter() *scriptFilter { return &scriptFilter{} }

func (s *scriptFilter) Process(item flv.Data, emit emitFunc) error {
	if item.Kind == flv.DataKindTag && item.Tag.Type == flv.TagTypeScript {
		return nil
	}
	return emit(item)
}

func (s *scriptFilter) Finish(emit emitFunc) error { return nil }

func (s *scriptFilter) Name() string { return "script-filter" }
