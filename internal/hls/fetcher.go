package hls

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/strevio/strev/internal/observability"
)

const (
	defaultFetchRetries     = 3
	defaultFetchBackoffBase = 500 * time.Millisecond
	fetchBackoffCap         = 8 * time.Second
)

// SegmentFetchFunc retrieves one segment's raw body. The caller owns HTTP
// transport concerns (proxy, DNS, TLS, auth headers); this is the only
// network collaborator the fetcher requires.
type SegmentFetchFunc func(ctx context.Context, job ScheduledSegmentJob) ([]byte, error)

// FetchResult is what the fetcher pool hands to the coordinator for each
// completed job, success or permanent failure.
type FetchResult struct {
	Job  ScheduledSegmentJob
	Data HlsData
	Err  *SegmentFetchError
}

// Fetcher downloads one scheduled segment at a time with retry/backoff and
// decrypts it when keyed; the Coordinator owns the concurrency pool that
// calls Do for many jobs at once.
type Fetcher struct {
	fetch       SegmentFetchFunc
	decryptor   *Decryptor
	concurrency int
	retries     int
	backoffBase time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewFetcher builds a Fetcher. concurrency defaults to 4, retries to 3,
// backoffBase to 500ms per §4.I. qps <= 0 disables outbound rate limiting.
func NewFetcher(fetch SegmentFetchFunc, decryptor *Decryptor, concurrency, retries int, backoffBase time.Duration, qps float64, logger *slog.Logger) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if retries <= 0 {
		retries = defaultFetchRetries
	}
	if backoffBase <= 0 {
		backoffBase = defaultFetchBackoffBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(qps), concurrency)
	}
	return &Fetcher{
		fetch:       fetch,
		decryptor:   decryptor,
		concurrency: concurrency,
		retries:     retries,
		backoffBase: backoffBase,
		limiter:     limiter,
		logger:      logger,
	}
}

// Concurrency reports the configured worker pool width, so the coordinator
// can size its own dispatch semaphore to match.
func (f *Fetcher) Concurrency() int { return f.concurrency }

// Do fetches one job synchronously: retries (default 3, exponential backoff
// starting at backoffBase, capped at 8s), then decryption if keyed. The
// caller is expected to invoke this from its own worker goroutine.
func (f *Fetcher) Do(ctx context.Context, job ScheduledSegmentJob) FetchResult {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(f.backoffBase, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return FetchResult{Job: job, Err: &SegmentFetchError{MediaSequenceNumber: job.MediaSequenceNumber, Cause: ctx.Err()}}
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return FetchResult{Job: job, Err: &SegmentFetchError{MediaSequenceNumber: job.MediaSequenceNumber, Cause: err}}
			}
		}

		body, err := f.fetch(ctx, job)
		if err != nil {
			lastErr = err
			f.logger.Warn("hls segment fetch attempt failed", "seq", job.MediaSequenceNumber, "attempt", attempt, "err", err)
			continue
		}

		data, derr := f.decrypt(ctx, job, body)
		if derr != nil {
			observability.SegmentDecryptFailureTotal.Inc()
			observability.SegmentFetchTotal.WithLabelValues("decrypt_failed").Inc()
			return FetchResult{Job: job, Err: &SegmentFetchError{MediaSequenceNumber: job.MediaSequenceNumber, Cause: derr}}
		}
		observability.SegmentFetchTotal.WithLabelValues("success").Inc()
		return FetchResult{Job: job, Data: data}
	}
	observability.SegmentFetchTotal.WithLabelValues("exhausted").Inc()
	return FetchResult{Job: job, Err: &SegmentFetchError{MediaSequenceNumber: job.MediaSequenceNumber, Cause: lastErr}}
}

func (f *Fetcher) decrypt(ctx context.Context, job ScheduledSegmentJob, body []byte) (HlsData, error) {
	plain := body
	if f.decryptor != nil {
		var err error
		plain, err = f.decryptor.Decrypt(ctx, job.MediaSequenceNumber, job.KeyInfo, body)
		if err != nil {
			return HlsData{}, err
		}
	}

	switch {
	case job.IsInitSegment:
		return NewInitData(job.Meta, plain), nil
	case job.IsFragment:
		return NewFragmentData(job.Meta, plain), nil
	default:
		return NewTsData(job.Meta, plain), nil
	}
}

// backoffDelay computes the attempt'th retry delay: base * 2^(attempt-1),
// capped at fetchBackoffCap.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= fetchBackoffCap {
			return fetchBackoffCap
		}
	}
	return d
}
