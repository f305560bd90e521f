package flvpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strevio/strev/internal/config"
)

func TestBuild_StageOrder(t *testing.T) {
	var cfg config.PipelineConfig
	cfg.TimingRepairStrategy = "relative"
	cfg.ContinuityMode = "continuous"
	cfg.RequireKeyframeAtSplit = true
	cfg.MinFragmentSize = 2

	p := Build(cfg, 8)
	assert.Equal(t, []string{
		"header-check",
		"defragment",
		"gop-sort",
		"timing-repair",
		"time-consistency",
		"script-filter",
		"script-filler",
		"split",
		"limit",
	}, p.Stages())
}
