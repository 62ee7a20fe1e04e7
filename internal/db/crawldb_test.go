package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"style_spider/internal/models"
)

func setupCrawlDB(t *testing.T) (*CrawlDB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "output", "crawler.db")
	cdb, err := OpenCrawlDB(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cdb.Close() })
	return cdb, path
}

func TestOpenCrawlDBFreshness(t *testing.T) {
	t.Parallel()

	cdb, path := setupCrawlDB(t)
	assert.True(t, cdb.Fresh())
	require.NoError(t, cdb.Close())

	again, err := OpenCrawlDB(context.Background(), path)
	require.NoError(t, err)
	defer again.Close()
	assert.False(t, again.Fresh())
}

func TestCrawlStateRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cdb, _ := setupCrawlDB(t)

	state, err := cdb.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Cursor)
	assert.Nil(t, state.LastCreatedAt)

	cursor := "YXJyYXljb25uZWN0aW9uOjk5"
	created := "2008-07-25T20:49:00+00:00"
	require.NoError(t, cdb.SaveState(ctx, CrawlState{Cursor: &cursor, LastCreatedAt: &created}))

	// saving twice keeps a single row
	require.NoError(t, cdb.SaveState(ctx, CrawlState{Cursor: &cursor, LastCreatedAt: &created}))

	state, err = cdb.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.Cursor)
	require.NotNil(t, state.LastCreatedAt)
	assert.Equal(t, cursor, *state.Cursor)
	assert.Equal(t, created, *state.LastCreatedAt)

	require.NoError(t, cdb.SaveState(ctx, CrawlState{LastCreatedAt: &created}))
	state, err = cdb.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Cursor)
}

func TestWritePageReplacesExtracts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cdb, _ := setupCrawlDB(t)

	page := &models.Page{
		URL:           "http://scp-wiki.wikidot.com/scp-173",
		Slug:          "scp-173",
		Title:         "SCP-173",
		Category:      "_default",
		CreatedAt:     "2008-07-25T20:49:00+00:00",
		WikidotPageID: "1956234",
		Source:        "source v1",
		ModuleStyles:  []string{"a{}", "b{}"},
		InlineStyles:  []string{"color: red;"},
		Includes:      []string{"component:image-block"},
		Classes:       []string{"x", "y", "z"},
	}
	require.NoError(t, cdb.WritePage(ctx, page))

	page.Source = "source v2"
	page.ModuleStyles = []string{"c{}"}
	page.Classes = nil
	require.NoError(t, cdb.WritePage(ctx, page))

	pages, err := cdb.Pages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	got := pages[0]
	assert.Equal(t, "source v2", got.Source)
	assert.Equal(t, "1956234", got.WikidotPageID)
	assert.Equal(t, []string{"c{}"}, got.ModuleStyles)
	assert.Equal(t, []string{"color: red;"}, got.InlineStyles)
	assert.Equal(t, []string{"component:image-block"}, got.Includes)
	assert.Empty(t, got.Classes)
}

func TestPagesKeepsExtractOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cdb, _ := setupCrawlDB(t)

	classes := []string{"k", "j", "i", "h", "g", "f", "e", "d", "c", "b", "a", "z"}
	require.NoError(t, cdb.WritePage(ctx, &models.Page{
		URL:     "http://scp-wiki.wikidot.com/scp-002",
		Slug:    "scp-002",
		Classes: classes,
	}))
	require.NoError(t, cdb.WritePage(ctx, &models.Page{
		URL:  "http://scp-wiki.wikidot.com/scp-001",
		Slug: "scp-001",
	}))

	pages, err := cdb.Pages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "scp-001", pages[0].Slug)
	assert.Equal(t, classes, pages[1].Classes)
}
