package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"style_spider/internal/browser"
	"style_spider/internal/config"
	"style_spider/internal/db"
	"style_spider/internal/logging"
	"style_spider/internal/models"
	urlqueue "style_spider/internal/url_queue"
)

// Browser is what the spider needs from a browser session.
type Browser interface {
	ViewSource(ctx context.Context, pageURL string, settle time.Duration) (*browser.Snapshot, error)
	Close() error
}

// BrowserFactory starts the browser for one run.
type BrowserFactory func(ctx context.Context) (Browser, error)

// Mirror receives a copy of every result, e.g. a MongoDB collection.
type Mirror interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	SaveSpiderHistory(ctx context.Context, history *models.SpiderHistory) error
}

type SpiderApp struct {
	config      *config.SpiderConfig
	log         *zap.Logger
	checkpoint  *db.Checkpoint
	mirror      Mirror
	newBrowser  BrowserFactory
	client      *http.Client
	robotsGroup *robotstxt.Group
	runID       string
}

type Option func(*SpiderApp)

func WithBrowserFactory(f BrowserFactory) Option {
	return func(s *SpiderApp) { s.newBrowser = f }
}

func WithMirror(m Mirror) Option {
	return func(s *SpiderApp) { s.mirror = m }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *SpiderApp) { s.client = c }
}

func NewSpiderApp(cfg *config.SpiderConfig, logger *zap.Logger, opts ...Option) *SpiderApp {
	logger = logging.OrNop(logger)

	s := &SpiderApp{
		config:     cfg,
		log:        logger,
		checkpoint: db.NewCheckpoint(cfg.Scraper.CheckpointPath),
		client: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: true,
				MaxIdleConns:      0,
			},
			Timeout: cfg.Logic.Timeout(),
		},
	}
	s.newBrowser = func(ctx context.Context) (Browser, error) {
		m := browser.NewManager(browser.Config{
			RemoteURL: cfg.Scraper.RemoteURL,
			Headless:  cfg.Scraper.Headless,
			Stealth:   cfg.Scraper.Stealth,
			Timeout:   cfg.Logic.Timeout(),
			UserAgent: cfg.Logic.UserAgent,
			Logger:    logger,
		})
		if err := m.Start(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID identifies the last run's history entries. Empty before the
// crawl started.
func (s *SpiderApp) RunID() string {
	return s.runID
}

// Run scrapes every slug of the configured range that the checkpoint does
// not have yet. The checkpoint is flushed on every exit path, including a
// failed browser start and SIGINT/SIGTERM.
func (s *SpiderApp) Run(ctx context.Context) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.loadCheckpoint()
	defer func() {
		if saveErr := s.checkpoint.Save(); saveErr != nil {
			s.log.Error("Failed to save styles", zap.Error(saveErr))
			err = errors.Join(err, saveErr)
		}
	}()

	s.log.Info("Starting up scraper...",
		zap.String("base_url", s.config.Scraper.BaseURL),
		zap.Int("from", s.config.Scraper.StartNumber),
		zap.Int("to", s.config.Scraper.EndNumber),
		zap.Int("rate_limit_ms", s.config.Logic.RateLimitMS))

	if s.config.Scraper.RespectRobots {
		s.initRobotsTxt(ctx)
	}

	b, err := s.newBrowser(ctx)
	if err != nil {
		s.log.Error("Error running scraper", zap.Error(err))
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			s.log.Warn("Failed to close browser", zap.Error(closeErr))
		}
	}()

	queue := urlqueue.NewSlugQueue(
		s.config.Scraper.BaseURL,
		s.config.Scraper.StartNumber,
		s.config.Scraper.EndNumber,
		s.checkpoint.Has,
	)

	spider := NewStyleSpider(SpiderDeps{
		Browser:      b,
		Checkpoint:   s.checkpoint,
		Mirror:       s.mirror,
		Queue:        queue,
		Allowed:      s.isAllowedURL,
		SettleDelays: s.config.Logic.SettleDelays(),
		RateLimit:    s.config.Logic.RateLimit(),
		Logger:       s.log,
	})
	s.runID = spider.RunID()

	if err := spider.Crawl(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.Warn("Interrupted, saving progress")
			return nil
		}
		s.log.Error("Error running scraper", zap.Error(err))
		return err
	}
	return nil
}

func (s *SpiderApp) loadCheckpoint() {
	if err := s.checkpoint.Load(); err != nil {
		s.log.Info("Cannot load pre-existing styles.", zap.String("path", s.checkpoint.Path()), zap.Error(err))
		return
	}
	s.log.Info("Loaded pre-existing styles",
		zap.String("path", s.checkpoint.Path()),
		zap.Int("count", s.checkpoint.Len()))
}

func (s *SpiderApp) initRobotsTxt(ctx context.Context) {
	u, err := url.Parse(s.config.Scraper.BaseURL)
	if err != nil {
		s.log.Warn("Can't parse base URL for robots.txt", zap.Error(err))
		return
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	s.log.Debug("Loading robots.txt", zap.String("url", robotsURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		s.log.Warn("Can't build robots.txt request", zap.Error(err))
		return
	}
	req.Header.Set("User-Agent", s.config.Logic.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("Failed to load robots.txt, ignoring", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		s.log.Warn("Failed to parse robots.txt", zap.Error(err))
		return
	}

	s.robotsGroup = data.FindGroup(s.config.Logic.UserAgent)
	s.log.Info("robots.txt loaded and applied")
}

func (s *SpiderApp) isAllowedURL(link string) bool {
	if s.robotsGroup == nil {
		return true
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false
	}
	return s.robotsGroup.Test(u.Path)
}
