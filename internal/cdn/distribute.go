// Package cdn sorts files downloaded from a CDN into per-site directories
// according to the manifests found in each site directory.
package cdn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"style_spider/internal/logging"
)

// FilesDir holds the downloaded files, shared by all sites.
const FilesDir = "files"

// BrokenMarker is written in place of a filename when the download failed.
const BrokenMarker = "<BROKEN>"

type Stats struct {
	Sites     int
	Manifests int
	Copied    int
	Present   int
	Broken    int
	Malformed int
}

type Distributor struct {
	baseDir string
	log     *zap.Logger
	stats   Stats
}

func NewDistributor(baseDir string, logger *zap.Logger) *Distributor {
	return &Distributor{baseDir: baseDir, log: logging.OrNop(logger)}
}

// DefaultBaseDir is ~/incoming/cdndiscord.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "incoming", "cdndiscord"), nil
}

// Run processes every site directory. A file that cannot be copied is
// reported and the run goes on; all such errors are returned together.
func (d *Distributor) Run() (Stats, error) {
	entries, err := os.ReadDir(d.baseDir)
	if err != nil {
		return d.stats, fmt.Errorf("cdn: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == FilesDir {
			continue
		}
		d.stats.Sites++
		d.log.Info("Opening directory", zap.String("site", entry.Name()))
		if err := d.site(filepath.Join(d.baseDir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return d.stats, errors.Join(errs...)
}

func (d *Distributor) site(dir string) error {
	manifests, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return err
	}
	sort.Strings(manifests)

	var errs []error
	for _, path := range manifests {
		d.stats.Manifests++
		d.log.Info("Processing file", zap.String("path", path))
		if err := d.manifest(dir, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Distributor) manifest(dir, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cdn: %w", err)
	}
	defer f.Close()

	var errs []error
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			d.stats.Malformed++
			d.log.Warn("Malformed manifest line", zap.String("path", path), zap.String("line", line))
			continue
		}
		url, filename := fields[0], fields[1]

		if filename == BrokenMarker {
			d.stats.Broken++
			d.log.Warn("File is broken", zap.String("url", url))
			continue
		}

		dest := filepath.Join(dir, filepath.Base(filename))
		if _, err := os.Stat(dest); err == nil {
			d.stats.Present++
			continue
		}

		d.log.Info("Copying file", zap.String("filename", filename))
		if err := copyFile(filepath.Join(d.baseDir, FilesDir, filepath.Base(filename)), dest); err != nil {
			d.log.Error("Failed to copy file", zap.String("filename", filename), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		d.stats.Copied++
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("cdn: read %s: %w", path, err))
	}
	return errors.Join(errs...)
}

// copyFile writes src to dest through a temporary file in dest's
// directory, so an interrupted copy never leaves a partial dest behind.
func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cdn: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cdn: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("cdn: copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cdn: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("cdn: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("cdn: %w", err)
	}
	return nil
}
