// Package worker drains the crawl queue: claim pending items, fetch them,
// snapshot the content, and report terminal outcomes.
package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/blob"
	"github.com/yamelab/medref/internal/events"
	"github.com/yamelab/medref/internal/fetch"
	"github.com/yamelab/medref/internal/ingest"
	"github.com/yamelab/medref/internal/metrics"
	"github.com/yamelab/medref/internal/queue"
)

// SourceRule tells the worker how to fetch items of one source.
type SourceRule struct {
	// URLTemplate, when set, turns the item's title into a URL via the
	// {target} placeholder. Without it the item must carry a full URL.
	URLTemplate string
	MinInterval time.Duration
}

// Config controls one worker.
type Config struct {
	JobName         string
	MaxItems        int
	ContentType     string
	BlobPrefix      string
	HeadlessAllowed bool
	Sources         map[string]SourceRule
}

// Hasher digests page content for snapshot deduplication.
type Hasher interface {
	Hash(data []byte) string
}

// Worker processes claimed queue items one at a time, throttled per source.
type Worker struct {
	cfg       Config
	q         queue.Store
	runs      queue.RunStore
	pages     queue.PageStore
	probe     fetch.Fetcher
	headless  fetch.Fetcher
	detector  fetch.Detector
	blobs     blob.Store
	hasher    Hasher
	clock     ingest.Clock
	publisher events.Publisher
	logger    *zap.Logger

	sleep     func(time.Duration)
	lastFetch map[string]time.Time
}

// New builds a worker. headless, detector and publisher may be nil.
func New(
	cfg Config,
	q queue.Store,
	runs queue.RunStore,
	pages queue.PageStore,
	probe fetch.Fetcher,
	headlessFetcher fetch.Fetcher,
	det fetch.Detector,
	blobs blob.Store,
	hasher Hasher,
	clock ingest.Clock,
	publisher events.Publisher,
	logger *zap.Logger,
) *Worker {
	if cfg.JobName == "" {
		cfg.JobName = "crawl_queue_drain"
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 10
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if blobs == nil {
		blobs = blob.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:       cfg,
		q:         q,
		runs:      runs,
		pages:     pages,
		probe:     probe,
		headless:  headlessFetcher,
		detector:  det,
		blobs:     blobs,
		hasher:    hasher,
		clock:     clock,
		publisher: publisher,
		logger:    logger,
		sleep:     time.Sleep,
		lastFetch: make(map[string]time.Time),
	}
}

// Run drains the queue on a fixed interval until the context ends.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("worker run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and processes it. When items were claimed, an
// audit row is recorded and returned; an empty queue records nothing.
func (w *Worker) RunOnce(ctx context.Context) (queue.Run, error) {
	started := w.clock.Now()
	items, err := w.q.Claim(ctx, w.cfg.MaxItems)
	if err != nil {
		return queue.Run{}, fmt.Errorf("claim items: %w", err)
	}
	if len(items) == 0 {
		return queue.Run{}, nil
	}

	run := queue.Run{
		ID:        uuid.New(),
		JobName:   w.cfg.JobName,
		RowsIn:    len(items),
		StartedAt: started,
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			break
		}
		switch w.processItem(ctx, item) {
		case queue.StatusFetched:
			run.RowsUpserted++
		case queue.StatusSkipped:
			run.RowsSkipped++
		default:
			run.RowsErrored++
		}
	}

	run.Status = queue.RunSuccess
	if run.RowsErrored > 0 {
		run.Status = queue.RunPartial
		if run.RowsErrored == run.RowsIn {
			run.Status = queue.RunFailed
		}
	}
	finished := w.clock.Now()
	run.FinishedAt = &finished

	if err := w.runs.Record(ctx, run); err != nil {
		w.logger.Error("record run failed", zap.Error(err))
	}
	metrics.ObserveWorkerRun(run.Status)
	if err := w.publisher.Publish(ctx, map[string]any{
		"event":        "worker.run",
		"jobName":      run.JobName,
		"status":       run.Status,
		"rowsIn":       run.RowsIn,
		"rowsUpserted": run.RowsUpserted,
		"rowsSkipped":  run.RowsSkipped,
		"rowsErrored":  run.RowsErrored,
	}); err != nil {
		w.logger.Warn("run event publish failed", zap.Error(err))
	}

	w.logger.Info("worker run finished",
		zap.String("status", run.Status),
		zap.Int("rowsIn", run.RowsIn),
		zap.Int("rowsUpserted", run.RowsUpserted),
		zap.Int("rowsSkipped", run.RowsSkipped),
		zap.Int("rowsErrored", run.RowsErrored),
	)
	return run, nil
}

func (w *Worker) processItem(ctx context.Context, item queue.Item) queue.Status {
	logger := w.logger.With(zap.Int64("itemId", item.ID), zap.String("source", item.Source))

	rule, ok := w.cfg.Sources[item.Source]
	if !ok {
		return w.resolve(ctx, logger, item.ID, queue.StatusSkipped, "unsupported source")
	}
	target, err := BuildURL(rule, item)
	if err != nil {
		return w.resolve(ctx, logger, item.ID, queue.StatusError, err.Error())
	}

	w.throttle(item.Source, rule.MinInterval)

	resp, err := w.probe.Fetch(ctx, fetch.Request{URL: target})
	if err != nil {
		return w.resolve(ctx, logger, item.ID, queue.StatusError, fmt.Sprintf("fetch: %v", err))
	}
	resp = w.maybePromote(ctx, logger, target, resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.resolve(ctx, logger, item.ID, queue.StatusError, fmt.Sprintf("status %d", resp.StatusCode))
	}

	hash := w.hasher.Hash(resp.Body)
	blobURI, err := w.blobs.Put(ctx, w.blobPath(item.Source, hash), w.cfg.ContentType, resp.Body)
	if err != nil {
		// Snapshots are advisory; the page row still records the hash.
		logger.Warn("blob write failed", zap.Error(err))
	}

	inserted, err := w.pages.UpsertPage(ctx, queue.SourcePage{
		Source:      item.Source,
		Lang:        item.Lang,
		URL:         resp.URL,
		Title:       resp.Title,
		ContentHash: hash,
		BlobURI:     blobURI,
		FetchedAt:   w.clock.Now(),
	})
	if err != nil {
		return w.resolve(ctx, logger, item.ID, queue.StatusError, fmt.Sprintf("store page: %v", err))
	}

	detail := fmt.Sprintf("status %d, %d bytes", resp.StatusCode, len(resp.Body))
	if !inserted {
		detail += ", content unchanged"
	}
	return w.resolve(ctx, logger, item.ID, queue.StatusFetched, detail)
}

func (w *Worker) maybePromote(ctx context.Context, logger *zap.Logger, target string, resp fetch.Response) fetch.Response {
	if !w.cfg.HeadlessAllowed || w.headless == nil || w.detector == nil {
		return resp
	}
	if !w.detector.ShouldPromote(resp) {
		return resp
	}
	rendered, err := w.headless.Fetch(ctx, fetch.Request{URL: target})
	if err != nil {
		logger.Warn("headless promotion failed, keeping probe response", zap.Error(err))
		return resp
	}
	return rendered
}

func (w *Worker) resolve(ctx context.Context, logger *zap.Logger, id int64, status queue.Status, detail string) queue.Status {
	if err := w.q.Resolve(ctx, id, status, detail); err != nil {
		logger.Error("resolve failed", zap.String("status", string(status)), zap.Error(err))
		return queue.StatusError
	}
	metrics.ObserveQueueTransition(string(status))
	return status
}

// throttle enforces the per-source minimum interval between fetches.
func (w *Worker) throttle(source string, min time.Duration) {
	if min <= 0 {
		return
	}
	now := w.clock.Now()
	if last, ok := w.lastFetch[source]; ok {
		if wait := min - now.Sub(last); wait > 0 {
			w.sleep(wait)
		}
	}
	w.lastFetch[source] = w.clock.Now()
}

func (w *Worker) blobPath(source, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", source, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, source, hash)
}

// BuildURL resolves the fetch target for one item: template sources fill the
// title into the {target} placeholder, the rest must carry a full URL.
func BuildURL(rule SourceRule, item queue.Item) (string, error) {
	if rule.URLTemplate != "" {
		return strings.ReplaceAll(rule.URLTemplate, "{target}", url.PathEscape(item.URLOrTitle)), nil
	}
	u, err := url.Parse(item.URLOrTitle)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("item %d of source %s is not a valid URL: %q", item.ID, item.Source, item.URLOrTitle)
	}
	return item.URLOrTitle, nil
}
