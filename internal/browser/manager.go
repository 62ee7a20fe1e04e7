// Package browser drives a headless Chrome through Rod to open a Wikidot
// page's source view and capture the resulting DOM.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"style_spider/internal/extract"
	"style_spider/internal/logging"
)

// ErrPageMissing is returned by ViewSource for pages that do not exist.
var ErrPageMissing = errors.New("browser: page does not exist")

type Config struct {
	// RemoteURL is the WebSocket URL of an already running Chrome.
	// Empty launches a local one.
	RemoteURL string

	Headless bool
	Stealth  bool

	// Timeout bounds one ViewSource call. Default: 60s.
	Timeout time.Duration

	UserAgent string

	Logger *zap.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	c.Logger = logging.OrNop(c.Logger)
}

// Snapshot is the page DOM captured once the source view is open.
type Snapshot struct {
	URL  string
	HTML string
}

// Manager owns one Chrome process and the single tab every page is
// visited in.
type Manager struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches (or connects to) Chrome and opens the working tab.
func (m *Manager) Start(ctx context.Context) error {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", zap.String("url", wsURL))
	} else {
		l := launcher.New().Context(ctx).Headless(m.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", zap.String("url", wsURL), zap.Bool("headless", m.cfg.Headless))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		_ = m.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		_ = m.cleanup()
		return fmt.Errorf("browser: create tab: %w", err)
	}

	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: m.cfg.UserAgent}); err != nil {
			log.Warn("browser: set user agent failed", zap.Error(err))
		}
	}
	m.page = page
	return nil
}

// ViewSource visits pageURL, waits settle, opens the page source through
// the options menu and returns the DOM. Pages without an options button
// yield ErrPageMissing.
func (m *Manager) ViewSource(ctx context.Context, pageURL string, settle time.Duration) (*Snapshot, error) {
	if m.page == nil {
		return nil, errors.New("browser: not started")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout+settle)
	defer cancel()
	page := m.page.Context(ctx)

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if _, err := page.Element(extract.SelectorPageContent); err != nil {
		return nil, fmt.Errorf("browser: wait %s: %w", extract.SelectorPageContent, err)
	}

	has, _, err := page.Has(extract.SelectorOptions)
	if err != nil {
		return nil, fmt.Errorf("browser: check %s: %w", extract.SelectorOptions, err)
	}
	if !has {
		return nil, ErrPageMissing
	}

	for _, sel := range []string{extract.SelectorOptions, extract.SelectorViewSource} {
		if err := clickSelector(page, sel); err != nil {
			return nil, err
		}
	}

	el, err := page.Element(extract.SelectorPageSource)
	if err != nil {
		return nil, fmt.Errorf("browser: wait %s: %w", extract.SelectorPageSource, err)
	}
	if err := el.Focus(); err != nil {
		m.cfg.Logger.Debug("browser: focus page source", zap.Error(err))
	}

	dom, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}

	return &Snapshot{URL: pageURL, HTML: dom}, nil
}

func clickSelector(page *rod.Page, selector string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("browser: wait %s: %w", selector, err)
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("browser: focus %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

// Close shuts the tab and the browser and returns what failed. Safe to
// call more than once.
func (m *Manager) Close() error {
	return m.cleanup()
}

func (m *Manager) cleanup() error {
	var closers []func() error
	if m.page != nil {
		closers = append(closers, m.page.Close)
		m.page = nil
	}
	if m.browser != nil {
		closers = append(closers, m.browser.Close)
		m.browser = nil
	}
	if m.lnch != nil {
		lnch := m.lnch
		closers = append(closers, func() error {
			lnch.Cleanup()
			return nil
		})
		m.lnch = nil
	}
	return closeAll(closers...)
}

// closeAll runs every closer in order and joins their errors.
func closeAll(closers ...func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, fmt.Errorf("browser: close: %w", err))
		}
	}
	return errors.Join(errs...)
}
