package hls

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Coordinator owns the poller and fetcher, and re-serializes fetch
// completions (which arrive out of order) into strict media-sequence
// order before emitting downstream. It is the only place a hole in the
// sequence is tolerated, and only after a segment's retries are exhausted.
type Coordinator struct {
	poller        *Poller
	fetcher       *Fetcher
	jobs          chan ScheduledSegmentJob
	out           chan<- HlsData
	shutdownGrace time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	pending  map[int64]FetchResult
	expected int64
	haveExp  bool
}

// NewCoordinator wires a Poller and Fetcher together. jobs is the bounded
// queue between them (default depth 32 per §5); out receives emitted
// HlsData in order, and is closed by Run on return.
func NewCoordinator(poller *Poller, fetcher *Fetcher, jobs chan ScheduledSegmentJob, out chan<- HlsData, shutdownGrace time.Duration, logger *slog.Logger) *Coordinator {
	if shutdownGrace <= 0 {
		shutdownGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		poller:        poller,
		fetcher:       fetcher,
		jobs:          jobs,
		out:           out,
		shutdownGrace: shutdownGrace,
		logger:        logger,
		pending:       make(map[int64]FetchResult),
	}
}

// Run drives the poller and the fetch/reorder loop to completion under a
// shared errgroup: the first fatal error cancels both and Run returns it.
// On ctx cancellation, Run waits up to shutdownGrace for in-flight fetches
// to finish before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.out)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.poller.Run(gctx) })
	g.Go(func() error { return c.dispatchAndEmit(gctx) })

	return g.Wait()
}

// dispatchAndEmit is the single reader of c.jobs: it records scheduling
// order (media sequence numbers arrive contiguously from the poller),
// fans fetches out to a bounded pool sized to the fetcher's concurrency,
// and emits the contiguous prefix of completed results starting at the
// expected sequence as soon as it is available.
func (c *Coordinator) dispatchAndEmit(ctx context.Context) error {
	results := make(chan FetchResult, c.fetcher.Concurrency())
	sem := make(chan struct{}, c.fetcher.Concurrency())
	var wg sync.WaitGroup
	done := make(chan struct{})

	go func() {
		for {
			select {
			case job, ok := <-c.jobs:
				if !ok {
					wg.Wait()
					close(results)
					return
				}
				c.noteScheduled(job.MediaSequenceNumber)
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					wg.Wait()
					close(results)
					return
				}
				wg.Add(1)
				go func(job ScheduledSegmentJob) {
					defer wg.Done()
					defer func() { <-sem }()
					result := c.fetcher.Do(ctx, job)
					select {
					case results <- result:
					case <-ctx.Done():
					}
				}(job)
			case <-ctx.Done():
				wg.Wait()
				close(results)
				return
			}
		}
	}()

	go func() {
		defer close(done)
		for result := range results {
			c.absorb(result)
		}
	}()

	select {
	case <-done:
		c.flushRemaining()
		return nil
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(c.shutdownGrace):
			c.logger.Warn("hls coordinator shutdown grace period elapsed with fetches still in flight")
		}
		return ctx.Err()
	}
}

func (c *Coordinator) noteScheduled(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveExp {
		c.expected = seq
		c.haveExp = true
	}
}

// absorb records a completed fetch and emits every contiguous result
// starting at the expected sequence. A permanent failure at the expected
// sequence advances past it (with a logged error) rather than blocking
// forever.
func (c *Coordinator) absorb(result FetchResult) {
	c.mu.Lock()
	c.pending[result.Job.MediaSequenceNumber] = result
	toEmit := c.drainContiguous()
	c.mu.Unlock()

	for _, r := range toEmit {
		c.emitOne(r)
	}
}

// drainContiguous must be called with c.mu held; it pops and returns every
// result from c.pending starting at c.expected with no gap.
func (c *Coordinator) drainContiguous() []FetchResult {
	var out []FetchResult
	for c.haveExp {
		r, ok := c.pending[c.expected]
		if !ok {
			break
		}
		delete(c.pending, c.expected)
		out = append(out, r)
		c.expected++
	}
	return out
}

func (c *Coordinator) flushRemaining() {
	c.mu.Lock()
	rest := make([]FetchResult, 0, len(c.pending))
	for _, r := range c.pending {
		rest = append(rest, r)
	}
	c.pending = make(map[int64]FetchResult)
	c.mu.Unlock()
	for _, r := range rest {
		c.emitOne(r)
	}
}

func (c *Coordinator) emitOne(r FetchResult) {
	if r.Err != nil {
		c.logger.Error("hls segment fetch permanently failed", "seq", r.Job.MediaSequenceNumber, "err", r.Err)
		return
	}
	if r.Job.Meta.Discontinuity {
		c.out <- NewDiscontinuityData(r.Job.Meta)
	}
	c.out <- r.Data
}
