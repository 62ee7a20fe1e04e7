package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"style_spider/internal/models"
)

// Extract types stored in the extracts table.
const (
	ExtractModuleStyle = "module_style"
	ExtractInlineStyle = "inline_style"
	ExtractInclude     = "include"
	ExtractClass       = "class"
)

// CrawlDB stores pages fetched from the Crom API together with their
// extracts and the crawler's pagination state.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
	fresh  bool
}

// CrawlState is where the crawler resumes from. Nil fields were never set.
type CrawlState struct {
	Cursor        *string
	LastCreatedAt *string
}

// OpenCrawlDB opens the database at path, creating it and its schema when
// it does not exist yet.
func OpenCrawlDB(ctx context.Context, path string) (*CrawlDB, error) {
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: path, fresh: fresh}

	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Fresh reports whether the database file was created by this open.
func (cdb *CrawlDB) Fresh() bool {
	return cdb.fresh
}

func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		url TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TEXT NOT NULL,
		wikidot_page_id TEXT NOT NULL,
		source TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_slug ON pages(slug);

	CREATE TABLE IF NOT EXISTS extracts (
		page_url TEXT NOT NULL REFERENCES pages(url),
		extract_index INTEGER NOT NULL,
		extract_type TEXT NOT NULL,
		source TEXT NOT NULL,
		PRIMARY KEY (page_url, extract_type, extract_index)
	);

	CREATE TABLE IF NOT EXISTS crawler_state (
		cursor_state TEXT,
		last_created_at TEXT
	);
	`

	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

func (cdb *CrawlDB) LoadState(ctx context.Context) (CrawlState, error) {
	var cursor, lastCreatedAt sql.NullString

	err := cdb.db.QueryRowContext(ctx,
		`SELECT cursor_state, last_created_at FROM crawler_state LIMIT 1`,
	).Scan(&cursor, &lastCreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CrawlState{}, nil
	}
	if err != nil {
		return CrawlState{}, fmt.Errorf("failed to load crawler state: %w", err)
	}

	var state CrawlState
	if cursor.Valid {
		state.Cursor = &cursor.String
	}
	if lastCreatedAt.Valid {
		state.LastCreatedAt = &lastCreatedAt.String
	}
	return state, nil
}

// SaveState replaces the stored crawler state.
func (cdb *CrawlDB) SaveState(ctx context.Context, state CrawlState) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM crawler_state`); err != nil {
		return fmt.Errorf("failed to clear crawler state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO crawler_state (cursor_state, last_created_at) VALUES (?, ?)`,
		nullable(state.Cursor), nullable(state.LastCreatedAt),
	); err != nil {
		return fmt.Errorf("failed to save crawler state: %w", err)
	}
	return tx.Commit()
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// WritePage upserts page and replaces all of its extracts.
func (cdb *CrawlDB) WritePage(ctx context.Context, page *models.Page) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO pages (url, slug, title, category, created_at, wikidot_page_id, source)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		slug = excluded.slug,
		title = excluded.title,
		category = excluded.category,
		created_at = excluded.created_at,
		wikidot_page_id = excluded.wikidot_page_id,
		source = excluded.source
	`,
		page.URL,
		page.Slug,
		page.Title,
		page.Category,
		page.CreatedAt,
		page.WikidotPageID,
		page.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.URL, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracts WHERE page_url = ?`, page.URL); err != nil {
		return fmt.Errorf("failed to clear extracts for %s: %w", page.URL, err)
	}

	extracts := []struct {
		kind  string
		items []string
	}{
		{ExtractModuleStyle, page.ModuleStyles},
		{ExtractInlineStyle, page.InlineStyles},
		{ExtractInclude, page.Includes},
		{ExtractClass, page.Classes},
	}
	for _, e := range extracts {
		for idx, item := range e.items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO extracts (page_url, extract_index, extract_type, source) VALUES (?, ?, ?, ?)`,
				page.URL, idx, e.kind, item,
			); err != nil {
				return fmt.Errorf("failed to insert %s extract for %s: %w", e.kind, page.URL, err)
			}
		}
	}

	return tx.Commit()
}

// Pages returns every stored page with its extracts, ordered by URL.
func (cdb *CrawlDB) Pages(ctx context.Context) ([]*models.Page, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, slug, title, category, created_at, wikidot_page_id, source
	FROM pages
	ORDER BY url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	byURL := make(map[string]*models.Page)
	for rows.Next() {
		page := &models.Page{
			ModuleStyles: []string{},
			InlineStyles: []string{},
			Includes:     []string{},
			Classes:      []string{},
		}
		if err := rows.Scan(
			&page.URL,
			&page.Slug,
			&page.Title,
			&page.Category,
			&page.CreatedAt,
			&page.WikidotPageID,
			&page.Source,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
		byURL[page.URL] = page
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	extractRows, err := cdb.db.QueryContext(ctx, `
	SELECT page_url, extract_type, source
	FROM extracts
	ORDER BY page_url, extract_type, extract_index
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query extracts: %w", err)
	}
	defer extractRows.Close()

	for extractRows.Next() {
		var pageURL, kind, source string
		if err := extractRows.Scan(&pageURL, &kind, &source); err != nil {
			return nil, fmt.Errorf("failed to scan extract: %w", err)
		}
		page, ok := byURL[pageURL]
		if !ok {
			continue
		}
		switch kind {
		case ExtractModuleStyle:
			page.ModuleStyles = append(page.ModuleStyles, source)
		case ExtractInlineStyle:
			page.InlineStyles = append(page.InlineStyles, source)
		case ExtractInclude:
			page.Includes = append(page.Includes, source)
		case ExtractClass:
			page.Classes = append(page.Classes, source)
		}
	}
	return pages, extractRows.Err()
}
