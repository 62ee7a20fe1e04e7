package crom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"style_spider/internal/db"
	"style_spider/internal/extract"
	"style_spider/internal/logging"
	"style_spider/internal/models"
)

const pagesQuery = `
{
    pages(
        filter: {
            anyBaseUrl: $anyBaseUrl,
            wikidotInfo: {
                createdAt: {
                    gte: $lastCreatedAt,
                },
            },
        },
        sort: {
            order: ASC,
            key: CREATED_AT,
        },
        first: 100,
        after: $cursor,
    ) {
        edges {
            node {
                url,
                wikidotInfo {
                    title,
                    category,
                    createdAt,
                    wikidotId,
                    source,
                }
            }
        },
        pageInfo {
            hasNextPage,
            endCursor,
        }
    }
}
`

var reWikidotURL = regexp.MustCompile(`^https?://([\w\-]+)\.wikidot\.com/(.+)$`)

// ErrGiveUp is returned once a batch failed every attempt.
var ErrGiveUp = errors.New("crom: giving up")

// Store is the part of the crawl database the crawler writes to.
type Store interface {
	LoadState(ctx context.Context) (db.CrawlState, error)
	SaveState(ctx context.Context, state db.CrawlState) error
	WritePage(ctx context.Context, page *models.Page) error
}

type Crawler struct {
	client   *Client
	store    Store
	baseURLs []string
	retries  int
	log      *zap.Logger

	state    db.CrawlState
	lastSlug string
}

func NewCrawler(client *Client, store Store, baseURLs []string, retries int, logger *zap.Logger) *Crawler {
	if retries <= 0 {
		retries = 1
	}
	return &Crawler{
		client:   client,
		store:    store,
		baseURLs: baseURLs,
		retries:  retries,
		log:      logging.OrNop(logger),
	}
}

// Resume picks up the pagination state left by the previous run.
func (c *Crawler) Resume(ctx context.Context) error {
	state, err := c.store.LoadState(ctx)
	if err != nil {
		return err
	}
	c.state = state
	return nil
}

func (c *Crawler) State() db.CrawlState {
	return c.state
}

// Close persists the pagination state.
func (c *Crawler) Close(ctx context.Context) error {
	return c.store.SaveState(ctx, c.state)
}

// FetchAll requests batches until the API reports no further page. A batch
// is attempted up to the configured number of times.
func (c *Crawler) FetchAll(ctx context.Context) error {
	hasNextPage := true
	for hasNextPage {
		next, err := backoff.Retry(ctx, func() (bool, error) {
			next, err := c.pullPages(ctx)
			if err != nil && ctx.Err() != nil {
				return false, backoff.Permanent(ctx.Err())
			}
			return next, err
		},
			backoff.WithBackOff(&backoff.ZeroBackOff{}),
			backoff.WithMaxTries(uint(c.retries)),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, _ time.Duration) {
				c.log.Warn("Error fetching pages from Crom, making another attempt", zap.Error(err))
			}),
		)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.log.Error("Error fetching pages from Crom, giving up", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrGiveUp, err)
		}
		hasNextPage = next
	}

	c.log.Info("Hit the end, finished!")
	return nil
}

func (c *Crawler) pullPages(ctx context.Context) (bool, error) {
	c.log.Info("+ Requesting next batch of pages",
		zap.String("last_page", c.lastSlug),
		zap.String("created", formatDate(c.state.LastCreatedAt)))

	data, err := c.client.Query(ctx, pagesQuery, []Variable{
		{Name: "$anyBaseUrl", Value: c.baseURLs},
		{Name: "$lastCreatedAt", Value: c.state.LastCreatedAt},
		{Name: "$cursor", Value: c.state.Cursor},
	})
	if err != nil {
		return false, err
	}

	pages := data.Get("pages")
	if !pages.Exists() {
		return false, errors.New("crom: response has no pages")
	}

	var writeErr error
	pages.Get("edges").ForEach(func(_, edge gjson.Result) bool {
		page, slug, ok := ProcessEdge(edge)
		if slug != "" {
			c.lastSlug = slug
		}
		if !ok {
			c.log.Debug("Skipping page without source", zap.String("url", edge.Get("node.url").String()))
			return true
		}

		createdAt := page.CreatedAt
		c.state.LastCreatedAt = &createdAt
		if err := c.store.WritePage(ctx, page); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if writeErr != nil {
		return false, writeErr
	}

	info := pages.Get("pageInfo")
	hasNextPage := info.Get("hasNextPage").Bool()
	if hasNextPage {
		cursor := info.Get("endCursor").String()
		c.state.Cursor = &cursor
	}
	return hasNextPage, nil
}

// ProcessEdge turns one result edge into a page. ok is false when the page
// has no source or its URL is not a wikidot page.
func ProcessEdge(edge gjson.Result) (page *models.Page, slug string, ok bool) {
	node := edge.Get("node")
	pageURL := node.Get("url").String()
	m := reWikidotURL.FindStringSubmatch(pageURL)
	if m == nil {
		return nil, "", false
	}
	slug = m[2]

	info := node.Get("wikidotInfo")
	source := info.Get("source")
	if source.Type == gjson.Null {
		return nil, slug, false
	}

	styles := extract.FromSource(source.String())
	return &models.Page{
		URL:           pageURL,
		Slug:          slug,
		Title:         info.Get("title").String(),
		Category:      info.Get("category").String(),
		CreatedAt:     info.Get("createdAt").String(),
		WikidotPageID: info.Get("wikidotId").String(),
		Source:        source.String(),
		ModuleStyles:  styles.ModuleStyles,
		InlineStyles:  styles.InlineStyles,
		Includes:      styles.Includes,
		Classes:       styles.Classes,
	}, slug, true
}

func formatDate(isoDate *string) string {
	if isoDate == nil {
		return "None"
	}
	t, err := time.Parse(time.RFC3339, *isoDate)
	if err != nil {
		return *isoDate
	}
	return fmt.Sprintf("%d/%d/%d", t.Year(), t.Month(), t.Day())
}

// PageLister is what Export reads pages from.
type PageLister interface {
	Pages(ctx context.Context) ([]*models.Page, error)
}

// Export writes every stored page to path as {"pages": {slug: page}}.
// Results are keyed by slug alone, so when several sites share a slug the
// page with the lowest URL is kept and the others are logged and dropped.
func Export(ctx context.Context, store PageLister, path string, logger *zap.Logger) (int, error) {
	log := logging.OrNop(logger)

	pages, err := store.Pages(ctx)
	if err != nil {
		return 0, err
	}

	results := models.Results{Pages: make(map[string]*models.Page, len(pages))}
	for _, page := range pages {
		if kept, ok := results.Pages[page.Slug]; ok {
			log.Warn("Slug exported from more than one site, keeping the first",
				zap.String("slug", page.Slug),
				zap.String("kept", kept.URL),
				zap.String("dropped", page.URL))
			continue
		}
		results.Pages[page.Slug] = page
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("crom: export: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("crom: export: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(results); err != nil {
		return 0, fmt.Errorf("crom: export: %w", err)
	}
	return len(results.Pages), f.Close()
}
