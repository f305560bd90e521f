package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/strevio/strev/internal/cache"
	"github.com/strevio/strev/internal/config"
	"github.com/strevio/strev/internal/flv"
	"github.com/strevio/strev/internal/flvpipeline"
	"github.com/strevio/strev/internal/flvwriter"
	"github.com/strevio/strev/internal/hls"
	"github.com/strevio/strev/internal/hlspipeline"
	"github.com/strevio/strev/internal/observability"
	"github.com/strevio/strev/internal/version"
)

const (
	sniffBufferSize    = 512
	defaultHLSJobDepth = 32
	httpFetchTimeout   = 30 * time.Second
	// defaultMaxKeyframes bounds the onMetaData keyframe index reserved by
	// the script-filler/split stages; it must match the value flvwriter.New
	// is built with so the close-time patch always fits the placeholder.
	defaultMaxKeyframes = 10000
)

var (
	recordInputURL  string
	recordStreamID  string
	recordUserAgent string
)

// recordCmd drives either the FLV repair/segmentation pipeline or the HLS
// downloader/coordinator, chosen by sniffing the input URL's body, to
// completion against a single input stream.
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Repair and segment a live FLV or HLS stream into local files",
	Long: `record fetches --input, detects whether its body is an FLV tag stream or
an HLS playlist, and drives the matching pipeline until the input ends:

  FLV:  demux -> flvpipeline (repair/segmentation stages) -> flvwriter
  HLS:  playlist poller + segment fetcher pool -> coordinator -> hlspipeline

Output files are written under writer.output_dir per the configured
name_template.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&recordInputURL, "input", "", "input URL (FLV stream or HLS playlist), required")
	recordCmd.Flags().StringVar(&recordStreamID, "stream-id", "stream", "stream identifier substituted into output filenames")
	recordCmd.Flags().StringVar(&recordUserAgent, "user-agent", "strev/"+version.Short(), "User-Agent header sent on outbound requests")
	cobra.CheckErr(recordCmd.MarkFlagRequired("input"))

	mustBindPFlag("record.input", recordCmd.Flags().Lookup("input"))
	mustBindPFlag("record.stream_id", recordCmd.Flags().Lookup("stream-id"))
	mustBindPFlag("record.user_agent", recordCmd.Flags().Lookup("user-agent"))
}

func runRecord(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	correlationID := uuid.NewString()
	ctx = observability.ContextWithCorrelationID(ctx, correlationID)
	logger := observability.WithCorrelationID(slog.Default(), correlationID)
	httpClient := &http.Client{Timeout: httpFetchTimeout}

	resp, err := fetchURL(ctx, httpClient, recordInputURL, recordUserAgent)
	if err != nil {
		return fmt.Errorf("fetching input %s: %w", recordInputURL, err)
	}
	defer resp.Body.Close()

	head := make([]byte, sniffBufferSize)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input header: %w", err)
	}
	head = head[:n]
	rest := io.MultiReader(bytes.NewReader(head), resp.Body)

	switch {
	case flv.LooksLikeFLV(head):
		return runFLVRecord(ctx, cfg, rest, recordStreamID, logger)
	case hls.IsMasterPlaylist(head) || bytes.Contains(head, []byte("#EXTM3U")):
		playlistBody, err := io.ReadAll(rest)
		if err != nil {
			return fmt.Errorf("reading playlist body: %w", err)
		}
		return runHLSRecord(ctx, cfg, httpClient, recordInputURL, recordUserAgent, recordStreamID, playlistBody, logger)
	default:
		return fmt.Errorf("record: input %s is neither a recognizable FLV stream nor an HLS playlist", recordInputURL)
	}
}

func fetchURL(ctx context.Context, client *http.Client, rawURL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// runFLVRecord demuxes body as an FLV tag stream and drives it through the
// repair/segmentation pipeline into flvwriter output files.
func runFLVRecord(_ context.Context, cfg *config.Config, body io.Reader, streamID string, logger *slog.Logger) error {
	demuxer := flv.NewDemuxer(body)
	pipe := flvpipeline.Build(cfg.Pipeline, defaultMaxKeyframes)

	var filesCreated, tagsWritten int
	onProgress := func(s flvwriter.Stats) {
		tagsWritten = s.TagCount
		printProgressLine("tags=%d bytes=%d file=%s", s.TagCount, s.BytesWritten, s.Path)
	}
	writer := flvwriter.New(cfg.Writer, defaultMaxKeyframes, streamID, onProgress)
	defer writer.Close()

	sink := func(item flv.Data) error {
		if item.Kind == flv.DataKindHeader {
			filesCreated++
		}
		return writer.Write(item)
	}

	input := func() (flv.Data, bool, error) {
		item, err := demuxer.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return flv.Data{}, false, nil
			}
			return flv.Data{}, false, fmt.Errorf("demuxing input: %w", err)
		}
		return item, true, nil
	}

	if err := pipe.Run(input, sink); err != nil {
		return fmt.Errorf("running flv pipeline: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing writer: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	demuxStats := demuxer.Stats()
	logger.Info("flv record finished",
		"files_created", filesCreated,
		"tags_written", tagsWritten,
		"resync_attempts", demuxStats.ResyncAttempts,
		"bytes_skipped", demuxStats.BytesSkippedTotal,
	)
	return nil
}

// printProgressLine overwrites the current terminal line with a single
// progress update; it is the CLI's consumer of the writer packages'
// optional OnProgress callback.
func printProgressLine(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\r"+format, args...)
}

// runHLSRecord resolves a master playlist to a media variant if necessary,
// then wires the poller, fetcher, decryptor and coordinator together and
// drains the coordinator's output into hlspipeline files.
func runHLSRecord(ctx context.Context, cfg *config.Config, client *http.Client, inputURL, userAgent, streamID string, body []byte, logger *slog.Logger) error {
	mediaURL := inputURL
	if hls.IsMasterPlaylist(body) {
		mp, err := hls.ParseMasterPlaylist(body)
		if err != nil {
			return fmt.Errorf("parsing master playlist: %w", err)
		}
		variant, err := hls.SelectVariant(mp, cfg.HLS.MaxBandwidth)
		if err != nil {
			return fmt.Errorf("selecting variant: %w", err)
		}
		mediaURL = resolveURL(inputURL, variant.URI)

		resp, err := fetchURL(ctx, client, mediaURL, userAgent)
		if err != nil {
			return fmt.Errorf("fetching media playlist: %w", err)
		}
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading media playlist: %w", err)
		}
	}

	var tiers []cache.Provider
	if cfg.Cache.MemoryMaxBytes > 0 {
		mc, err := cache.NewMemoryCache(cfg.Cache.MemoryMaxBytes.Bytes(), logger)
		if err != nil {
			return fmt.Errorf("building memory cache: %w", err)
		}
		defer mc.Close()
		tiers = append(tiers, mc)
	}
	if cfg.Cache.FileDir != "" {
		fc, err := cache.NewFileCache(cfg.Cache.FileDir, logger)
		if err != nil {
			return fmt.Errorf("building file cache: %w", err)
		}
		defer fc.Close()
		tiers = append(tiers, fc)

		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go runFileCacheSweeper(sweepCtx, fc, cfg.Cache.FileSweepPeriod.Duration(), logger)
	}

	playlistFetch := func(ctx context.Context) ([]byte, error) {
		resp, err := fetchURL(ctx, client, mediaURL, userAgent)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	}

	segmentFetch := segmentFetchFunc(client, userAgent, tiers, cfg.Cache.FileTTL.Duration())
	keyFetch := keyFetchFunc(client, userAgent, tiers, cfg.Cache.FileTTL.Duration())

	jobs := make(chan hls.ScheduledSegmentJob, defaultHLSJobDepth)
	out := make(chan hls.HlsData, defaultHLSJobDepth)

	poller := hls.NewPoller(playlistFetch, mediaURL, jobs, cfg.HLS.PlaylistRefreshMin.Duration(), cfg.HLS.PlaylistRefreshMax.Duration(), nil, logger)
	decryptor := hls.NewDecryptor(keyFetch)
	fetcher := hls.NewFetcher(segmentFetch, decryptor, cfg.HLS.FetcherConcurrency, cfg.HLS.FetchRetries, cfg.HLS.FetchBackoffBase.Duration(), 0, logger)
	coordinator := hls.NewCoordinator(poller, fetcher, jobs, out, cfg.HLS.ShutdownGracePeriod.Duration(), logger)

	onProgress := func(s hlspipeline.Stats) {
		printProgressLine("segments=%d bytes=%d file=%s", s.SegmentCount, s.BytesWritten, s.Path)
	}
	writer := hlspipeline.New(cfg.Writer, cfg.Pipeline.MaxFileSize.Bytes(), cfg.Pipeline.MaxDuration.Duration(), streamID, onProgress)

	errc := make(chan error, 1)
	go func() { errc <- coordinator.Run(ctx) }()

	for item := range out {
		if err := writer.Write(item); err != nil {
			return fmt.Errorf("writing hls output: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing hls writer: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("hls coordinator: %w", err)
	}

	stats := writer.Stats()
	logger.Info("hls record finished", "segments_written", stats.SegmentCount, "bytes_written", stats.BytesWritten)
	return nil
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	refURL.Path = path.Join(path.Dir(baseURL.Path), refURL.Path)
	return baseURL.ResolveReference(refURL).String()
}

// tieredGet consults tiers in order (memory before file) and returns the
// first hit.
func tieredGet(ctx context.Context, tiers []cache.Provider, key cache.Key) (cache.Entry, bool) {
	for _, tier := range tiers {
		if entry, ok := tier.Get(ctx, key); ok {
			return entry, true
		}
	}
	return cache.Entry{}, false
}

// tieredPut writes entry to every tier; a cache write never fails the
// caller, matching Provider's own contract.
func tieredPut(ctx context.Context, tiers []cache.Provider, key cache.Key, entry cache.Entry) {
	for _, tier := range tiers {
		tier.Put(ctx, key, entry)
	}
}

// runFileCacheSweeper periodically removes expired entries from the
// file-backed cache tier until ctx is canceled.
func runFileCacheSweeper(ctx context.Context, fc *cache.FileCache, period time.Duration, logger *slog.Logger) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := fc.Sweep(ctx); removed > 0 {
				logger.Debug("file cache sweep", "removed", removed)
			}
		}
	}
}

func segmentFetchFunc(client *http.Client, userAgent string, tiers []cache.Provider, ttl time.Duration) hls.SegmentFetchFunc {
	return func(ctx context.Context, job hls.ScheduledSegmentJob) ([]byte, error) {
		segURL := resolveURL(job.BaseURL, job.SegmentURI)
		key := cache.Key{ResourceType: "segment", URL: segURL}

		if entry, ok := tieredGet(ctx, tiers, key); ok {
			return entry.Bytes, nil
		}

		resp, err := fetchURL(ctx, client, segURL, userAgent)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading segment body: %w", err)
		}

		tieredPut(ctx, tiers, key, cache.Entry{Bytes: data, Metadata: cache.Metadata{Size: int64(len(data)), InsertedAt: time.Now(), TTL: ttl}})
		return data, nil
	}
}

func keyFetchFunc(client *http.Client, userAgent string, tiers []cache.Provider, ttl time.Duration) hls.KeyFetchFunc {
	return func(ctx context.Context, keyURI string) ([]byte, error) {
		key := cache.Key{ResourceType: "key", URL: keyURI}

		if entry, ok := tieredGet(ctx, tiers, key); ok {
			return entry.Bytes, nil
		}

		resp, err := fetchURL(ctx, client, keyURI, userAgent)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading key body: %w", err)
		}

		tieredPut(ctx, tiers, key, cache.Entry{Bytes: data, Metadata: cache.Metadata{Size: int64(len(data)), InsertedAt: time.Now(), TTL: ttl}})
		return data, nil
	}
}
