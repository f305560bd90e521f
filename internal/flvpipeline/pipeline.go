package flvpipeline

import (
	"github.com/strevio/strev/internal/config"
	"github.com/strevio/strev/internal/flv"
	"github.com/strevio/strev/internal/pipeline"
)

// emitFunc is the emit callback every stage in this package receives.
type emitFunc = pipeline.Emit[flv.Data]

// Build assembles the nine-stage FLV repair/segmentation pipeline in the
// prescriptive order named by the pipeline task: header-check, defragment,
// gop-sort, timing-repair, time-consistency, script-filter, script-filler,
// split, limit.
func Build(cfg config.PipelineConfig, maxKeyframes int) *pipeline.Pipeline[flv.Data] {
	return pipeline.New[flv.Data](
		newHeaderCheck(cfg.AllowSynthHeader),
		newDefragment(cfg.MinFragmentSize),
		newGOPSort(),
		newTimingRepair(cfg.TimingRepairStrategy),
		newTimeConsistency(cfg.ContinuityMode),
		newScriptFilter(),
		newScriptFiller(maxKeyframes),
		newSplit(cfg.MaxFileSize.Bytes(), cfg.MaxDuration.Duration(), cfg.RequireKeyframeAtSplit, maxKeyframes),
		newLimit(cfg.AbsoluteMaxFileSize.Bytes(), cfg.AbsoluteMaxDuration.Duration()),
	)
}
