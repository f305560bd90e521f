package hls

import (
	"context"
	"log/slog"
	"time"

	"github.com/strevio/strev/internal/observability"
)

const (
	minRefreshInterval = 1 * time.Second
	maxRefreshInterval = 10 * time.Second
	stallThreshold      = 3
)

// PlaylistFetchFunc retrieves the current media playlist body. The caller
// owns HTTP transport concerns (proxy, DNS, TLS, headers); this is the only
// network collaborator the poller requires.
type PlaylistFetchFunc func(ctx context.Context) ([]byte, error)

// SegmentClassifier is a pluggable hook that flags a scheduled job as
// platform-specific "ad" content; the default playlist parser already
// recognizes Twitch-style CLASS="twitch-stitched-ad" DATERANGE tags, but a
// caller can layer additional platform heuristics here.
type SegmentClassifier func(seg PlaylistSegment) bool

// Poller periodically fetches a media playlist, diffs it against a sliding
// window of already-scheduled URIs, and pushes new segments onto the job
// queue in media-sequence order.
type Poller struct {
	fetch       PlaylistFetchFunc
	jobs        chan<- ScheduledSegmentJob
	baseURL     string
	classifier  SegmentClassifier
	refreshMin  time.Duration
	refreshMax  time.Duration
	logger      *slog.Logger

	lastScheduled int64
	haveLast      bool
	scheduled     map[string]struct{}
	staleCount    int
}

// NewPoller builds a Poller. refreshMin/refreshMax bound the adaptive
// target_duration/2 poll cadence per §4.H; zero values fall back to the
// [1s, 10s] defaults.
func NewPoller(fetch PlaylistFetchFunc, baseURL string, jobs chan<- ScheduledSegmentJob, refreshMin, refreshMax time.Duration, classifier SegmentClassifier, logger *slog.Logger) *Poller {
	if refreshMin <= 0 {
		refreshMin = minRefreshInterval
	}
	if refreshMax <= 0 {
		refreshMax = maxRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetch:      fetch,
		jobs:       jobs,
		baseURL:    baseURL,
		classifier: classifier,
		refreshMin: refreshMin,
		refreshMax: refreshMax,
		logger:     logger,
		scheduled:  make(map[string]struct{}),
	}
}

// Run polls until the playlist declares #EXT-X-ENDLIST, ctx is cancelled, or
// a fetch/parse error occurs. It owns closing the jobs channel on return.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.jobs)

	interval := p.refreshMin
	for {
		data, err := p.fetch(ctx)
		if err != nil {
			observability.PlaylistPollTotal.WithLabelValues("fetch_error").Inc()
			return err
		}
		pl, err := ParseMediaPlaylist(data)
		if err != nil {
			observability.PlaylistPollTotal.WithLabelValues("parse_error").Inc()
			return err
		}
		observability.PlaylistPollTotal.WithLabelValues("success").Inc()

		ended, err := p.schedule(ctx, pl)
		if err != nil {
			return err
		}
		if ended {
			return nil
		}

		if pl.TargetDuration > 0 {
			interval = clampDuration(pl.TargetDuration/2, p.refreshMin, p.refreshMax)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// schedule pushes every unscheduled segment in pl onto the job queue and
// reports whether the stream has ended (EXT-X-ENDLIST after its last
// segment's job was queued).
func (p *Poller) schedule(ctx context.Context, pl *MediaPlaylist) (bool, error) {
	newCount := 0
	for i, seg := range pl.Segments {
		seq := pl.MediaSequence + int64(i)
		if p.haveLast && seq < p.lastScheduled {
			continue
		}
		if _, ok := p.scheduled[seg.URI]; ok {
			continue
		}

		isAd := seg.IsAd
		if p.classifier != nil && p.classifier(seg) {
			isAd = true
		}

		if seg.MapURI != "" {
			if _, ok := p.scheduled[seg.MapURI]; !ok {
				initJob := ScheduledSegmentJob{
					MediaSequenceNumber: seq,
					SegmentURI:          seg.MapURI,
					BaseURL:             p.baseURL,
					KeyInfo:             seg.Key,
					IsInitSegment:       true,
					Meta:                SegmentMeta{MediaSequenceNumber: seq, URI: seg.MapURI},
				}
				if err := p.push(ctx, initJob); err != nil {
					return false, err
				}
				p.scheduled[seg.MapURI] = struct{}{}
			}
		}

		job := ScheduledSegmentJob{
			MediaSequenceNumber: seq,
			SegmentURI:          seg.URI,
			BaseURL:             p.baseURL,
			KeyInfo:             seg.Key,
			IsFragment:          seg.MapURI != "",
			Meta: SegmentMeta{
				MediaSequenceNumber: seq,
				URI:                 seg.URI,
				Duration:            seg.Duration,
				Discontinuity:       seg.Discontinuity,
				IsAd:                isAd,
			},
		}
		if err := p.push(ctx, job); err != nil {
			return false, err
		}
		p.scheduled[seg.URI] = struct{}{}
		p.lastScheduled = seq + 1
		p.haveLast = true
		newCount++
	}

	if newCount == 0 {
		p.staleCount++
		if p.staleCount == stallThreshold {
			p.logger.Warn("hls playlist stalled", "consecutive_stale_polls", p.staleCount)
		}
	} else {
		p.staleCount = 0
	}

	return pl.EndList, nil
}

func (p *Poller) push(ctx context.Context, job ScheduledSegmentJob) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
