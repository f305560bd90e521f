package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level metrics registered against the default Prometheus
// registry, mirroring the pack's no-label-cardinality-explosion rule: label
// values are bounded enums (stage/kind/reason), never URLs or sequence
// numbers.
var (
	// SegmentFetchTotal counts HLS segment fetch attempts by outcome.
	SegmentFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strev_hls_segment_fetch_total",
		Help: "Total number of HLS segment fetch attempts, by outcome.",
	}, []string{"outcome"})

	// SegmentDecryptFailureTotal counts decryption failures.
	SegmentDecryptFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strev_hls_segment_decrypt_failure_total",
		Help: "Total number of HLS segment decryption failures.",
	})

	// PlaylistPollTotal counts playlist poll attempts by outcome.
	PlaylistPollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strev_hls_playlist_poll_total",
		Help: "Total number of HLS playlist poll attempts, by outcome.",
	}, []string{"outcome"})

	// WriterFilesCreatedTotal counts output files opened by the writer.
	WriterFilesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strev_writer_files_created_total",
		Help: "Total number of output files created by the writer.",
	})

	// WriterTagsWrittenTotal counts FLV tags and HLS segments written across
	// all files.
	WriterTagsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strev_writer_tags_written_total",
		Help: "Total number of FLV tags and HLS segments written by the writers.",
	})

	// CacheRequestTotal counts cache lookups by provider and outcome.
	CacheRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strev_cache_request_total",
		Help: "Total number of cache lookups, by provider and outcome (hit/miss).",
	}, []string{"provider", "outcome"})

	// CacheSweepRemovedTotal counts entries removed by periodic sweeps.
	CacheSweepRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strev_cache_sweep_removed_total",
		Help: "Total number of expired entries removed by cache sweeps, by provider.",
	}, []string{"provider"})
)
