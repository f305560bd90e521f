package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectVariant_NoCeilingPicksFirstVariant(t *testing.T) {
	mp := &MasterPlaylist{Variants: []MasterVariant{
		{URI: "low.m3u8", Bandwidth: 800000},
		{URI: "high.m3u8", Bandwidth: 2800000},
		{URI: "mid.m3u8", Bandwidth: 1400000},
	}}
	v, err := SelectVariant(mp, 0)
	require.NoError(t, err)
	assert.Equal(t, "low.m3u8", v.URI)
}

func TestSelectVariant_CeilingPicksHighestWithinBudget(t *testing.T) {
	mp := &MasterPlaylist{Variants: []MasterVariant{
		{URI: "low.m3u8", Bandwidth: 800000},
		{URI: "high.m3u8", Bandwidth: 2800000},
		{URI: "mid.m3u8", Bandwidth: 1400000},
	}}
	v, err := SelectVariant(mp, 1500000)
	require.NoError(t, err)
	assert.Equal(t, "mid.m3u8", v.URI)
}

func TestSelectVariant_CeilingBelowEveryVariantFallsBackToFirst(t *testing.T) {
	mp := &MasterPlaylist{Variants: []MasterVariant{
		{URI: "low.m3u8", Bandwidth: 800000},
		{URI: "high.m3u8", Bandwidth: 2800000},
	}}
	v, err := SelectVariant(mp, 100)
	require.NoError(t, err)
	assert.Equal(t, "low.m3u8", v.URI)
}

func TestSelectVariant_NoVariantsIsError(t *testing.T) {
	_, err := SelectVariant(&MasterPlaylist{}, 0)
	require.ErrorIs(t, err, ErrNoVariants)
}
