package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"style_spider/internal/browser"
	"style_spider/internal/db"
	"style_spider/internal/extract"
	"style_spider/internal/logging"
	"style_spider/internal/models"
	urlqueue "style_spider/internal/url_queue"
)

type SpiderDeps struct {
	Browser    Browser
	Checkpoint *db.Checkpoint
	Mirror     Mirror
	Queue      *urlqueue.SlugQueue
	// Allowed filters page URLs, e.g. by robots.txt. Nil allows everything.
	Allowed func(pageURL string) bool
	// SettleDelays has one entry per attempt; its length is the attempt limit.
	SettleDelays []time.Duration
	RateLimit    time.Duration
	Logger       *zap.Logger
}

// StyleSpider visits the queued pages one at a time, recording every
// result in the checkpoint as soon as it is known.
type StyleSpider struct {
	SpiderDeps
	log   *zap.Logger
	runID string

	pageCount    int
	missingCount int
	failedCount  int
	skippedCount int
	startTime    time.Time
}

func NewStyleSpider(deps SpiderDeps) *StyleSpider {
	if deps.Allowed == nil {
		deps.Allowed = func(string) bool { return true }
	}
	if len(deps.SettleDelays) == 0 {
		deps.SettleDelays = []time.Duration{0}
	}
	runID := uuid.NewString()
	return &StyleSpider{
		SpiderDeps: deps,
		log:        logging.OrNop(deps.Logger).With(zap.String("run_id", runID)),
		runID:      runID,
	}
}

// RunID tags the history entries of this run.
func (w *StyleSpider) RunID() string {
	return w.runID
}

func (w *StyleSpider) Crawl(ctx context.Context) error {
	w.startTime = time.Now()

	for {
		if err := ctx.Err(); err != nil {
			w.logSummary()
			return err
		}

		target, ok := w.Queue.Get()
		if !ok {
			break
		}

		if !w.Allowed(target.URL) {
			w.skippedCount++
			w.log.Info("- Disallowed by robots.txt, skipping", zap.String("slug", target.Slug))
			continue
		}

		if err := w.extract(ctx, target); err != nil {
			w.logSummary()
			return err
		}
	}

	w.logSummary()
	return nil
}

// extract scrapes one target with retries, records the outcome, saves the
// checkpoint and then waits out the rate limit.
func (w *StyleSpider) extract(ctx context.Context, target urlqueue.Target) error {
	rec, err := w.scrapeWithRetry(ctx, target)
	switch {
	case err == nil:
		w.Checkpoint.Set(target.Slug, rec)
		if rec == nil {
			w.missingCount++
		} else {
			w.pageCount++
		}
		w.mirrorDocument(ctx, target, rec)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		w.failedCount++
		w.log.Warn("! Failed to scrape, giving up!", zap.String("slug", target.Slug), zap.Error(err))
	}

	// Save every iteration to allow continuation
	if err := w.Checkpoint.Save(); err != nil {
		w.log.Error("Failed to save styles", zap.Error(err))
	}

	// Avoid rate-limiting
	return sleepCtx(ctx, w.RateLimit)
}

func (w *StyleSpider) scrapeWithRetry(ctx context.Context, target urlqueue.Target) (*models.StyleRecord, error) {
	attempt := 0
	operation := func() (*models.StyleRecord, error) {
		settle := w.SettleDelays[attempt]
		attempt++

		started := time.Now()
		rec, err := w.scrape(ctx, target, settle)
		w.mirrorHistory(ctx, target, attempt, started, rec, err)

		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return rec, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(len(w.SettleDelays))),
		backoff.WithNotify(func(err error, _ time.Duration) {
			w.log.Warn("! Failed to scrape, retrying...",
				zap.String("slug", target.Slug),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}),
	)
}

// scrape makes one attempt. A page that does not exist is a success with a
// nil record.
func (w *StyleSpider) scrape(ctx context.Context, target urlqueue.Target, settle time.Duration) (*models.StyleRecord, error) {
	w.log.Info("* Scraping", zap.String("url", target.URL))

	snap, err := w.Browser.ViewSource(ctx, target.URL, settle)
	if errors.Is(err, browser.ErrPageMissing) {
		w.log.Info("= Page not present, skipping", zap.String("slug", target.Slug))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	parsed, err := extract.ParseSnapshot(snap.HTML)
	if err != nil {
		return nil, err
	}
	rec, err := parsed.Record()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target.Slug, err)
	}
	return rec, nil
}

func (w *StyleSpider) mirrorDocument(ctx context.Context, target urlqueue.Target, rec *models.StyleRecord) {
	if w.Mirror == nil {
		return
	}

	doc := &models.Document{
		Slug:          target.Slug,
		URL:           target.URL,
		NormalizedURL: urlqueue.NormalizeURL(target.URL),
		Missing:       rec == nil,
		LastScraped:   time.Now().Unix(),
	}
	if rec != nil {
		doc.Styles = *rec
		doc.ContentHash = urlqueue.ComputeContentHash(rec.PageSource)
		doc.ContentLength = len(rec.PageSource)
	}

	if err := w.Mirror.SaveDocument(ctx, doc); err != nil {
		w.log.Warn("Failed to mirror document", zap.String("slug", target.Slug), zap.Error(err))
	}
}

func (w *StyleSpider) mirrorHistory(ctx context.Context, target urlqueue.Target, attempt int, started time.Time, rec *models.StyleRecord, scrapeErr error) {
	if w.Mirror == nil {
		return
	}

	history := &models.SpiderHistory{
		ID:        uuid.NewString(),
		RunID:     w.runID,
		Slug:      target.Slug,
		URL:       target.URL,
		Attempt:   attempt,
		Timestamp: started.Unix(),
		Duration:  time.Since(started).Milliseconds(),
	}
	switch {
	case scrapeErr != nil:
		history.Status = "error"
		history.ErrorMessage = scrapeErr.Error()
	case rec == nil:
		history.Status = "missing"
	default:
		history.Status = "success"
	}

	if err := w.Mirror.SaveSpiderHistory(ctx, history); err != nil {
		w.log.Warn("Failed to mirror history", zap.String("slug", target.Slug), zap.Error(err))
	}
}

func (w *StyleSpider) logSummary() {
	w.log.Info("Scraping finished",
		zap.Int("scraped", w.pageCount),
		zap.Int("missing", w.missingCount),
		zap.Int("failed", w.failedCount),
		zap.Int("skipped", w.skippedCount),
		zap.Duration("elapsed", time.Since(w.startTime)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
