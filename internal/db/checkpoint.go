package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"style_spider/internal/models"
)

// Checkpoint is the spider's resumable state: slug -> record, where a nil
// record marks a page that does not exist. It is rewritten in full on
// every Save.
type Checkpoint struct {
	path    string
	mu      sync.Mutex
	entries map[string]*models.StyleRecord
}

func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{
		path:    path,
		entries: make(map[string]*models.StyleRecord),
	}
}

func (c *Checkpoint) Path() string {
	return c.path
}

// Load replaces the in-memory entries with the file's. On any error the
// checkpoint is left empty; an unparsable file is moved aside to
// <path>.corrupt so the next Save does not silently replace it.
func (c *Checkpoint) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*models.StyleRecord)

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("checkpoint: read %s: %w", c.path, err)
	}

	entries := make(map[string]*models.StyleRecord)
	if err := json.Unmarshal(data, &entries); err != nil {
		if mvErr := os.Rename(c.path, c.path+".corrupt"); mvErr != nil {
			return errors.Join(fmt.Errorf("checkpoint: parse %s: %w", c.path, err), mvErr)
		}
		return fmt.Errorf("checkpoint: parse %s: %w", c.path, err)
	}
	c.entries = entries
	return nil
}

// Has reports whether slug was recorded, either with a record or as missing.
func (c *Checkpoint) Has(slug string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[slug]
	return ok
}

func (c *Checkpoint) Get(slug string) (*models.StyleRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[slug]
	return rec, ok
}

// Set records slug. A nil rec marks the page as not existing.
func (c *Checkpoint) Set(slug string, rec *models.StyleRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slug] = rec
}

func (c *Checkpoint) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes every entry as 4-space indented JSON through a temp file and
// a rename, so a crash mid-write keeps the previous checkpoint.
func (c *Checkpoint) Save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")

	c.mu.Lock()
	err := enc.Encode(c.entries)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("checkpoint: replace %s: %w", c.path, err)
	}
	return nil
}
