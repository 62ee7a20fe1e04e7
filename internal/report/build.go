package report

import (
	"bytes"
	"crypto/sha1"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"style_spider/internal/logging"
	"style_spider/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TableSortScript initializes sorting of the #page-list table.
//
//go:embed static/script.js
var TableSortScript []byte

const scriptPath = "static/script.js"

var printer = message.NewPrinter(language.English)

type layout struct {
	Title    string
	Root     string
	Sortable bool
}

type pageView struct {
	layout
	Page *models.Page
}

type detailView struct {
	layout
	Heading string
	Pre     bool
	Items   []Counted
	Total   int
}

type indexView struct {
	layout
	Pages  []*models.Page
	Counts Counts
}

type Builder struct {
	tmpl *template.Template
	log  *zap.Logger
}

func NewBuilder(logger *zap.Logger) (*Builder, error) {
	tmpl, err := template.New("report").Funcs(Funcs(time.Now)).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("report: parse templates: %w", err)
	}
	return &Builder{tmpl: tmpl, log: logging.OrNop(logger)}, nil
}

// Funcs returns the helpers available to the report templates.
func Funcs(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"cmp": compare,
		"now": func() time.Time { return now().UTC() },
		"commaify": func(n int) string {
			return printer.Sprintf("%d", n)
		},
		"reverse": func(items []Counted) []Counted {
			out := slices.Clone(items)
			slices.Reverse(out)
			return out
		},
		"sha1": func(s string) string {
			sum := sha1.Sum([]byte(s))
			return hex.EncodeToString(sum[:])
		},
	}
}

func compare(x int, op string, y int) (bool, error) {
	switch op {
	case ">":
		return x > y, nil
	case "<":
		return x < y, nil
	case ">=":
		return x >= y, nil
	case "<=":
		return x <= y, nil
	case "==":
		return x == y, nil
	case "!=":
		return x != y, nil
	}
	return false, fmt.Errorf("report: unknown operator %q", op)
}

// Render produces every report file, keyed by path relative to the output
// directory.
func (b *Builder) Render(pages []*models.Page, counts Counts) (map[string][]byte, error) {
	files := make(map[string][]byte, len(pages)+6)

	for _, page := range pages {
		b.log.Debug("Generating page", zap.String("slug", page.Slug))
		html, err := b.execute("page.tmpl", pageView{
			layout: layout{Title: page.Slug + ": " + page.Title, Root: "../"},
			Page:   page,
		})
		if err != nil {
			return nil, fmt.Errorf("report: page %s: %w", page.Slug, err)
		}
		files["pages/"+page.Slug+".html"] = html
	}

	b.log.Info("Generating detail pages...")
	details := []struct {
		name, title, heading string
		pre                  bool
		items                []Counted
	}{
		{"module-css.html", "Module CSS", "Style", true, counts.ModuleStyles},
		{"inline-css.html", "Inline CSS", "Style", false, counts.InlineStyles},
		{"includes.html", "Includes", "Page", false, counts.Includes},
		{"classes.html", "Classes", "Class", false, counts.Classes},
	}
	for _, d := range details {
		html, err := b.execute("detail.tmpl", detailView{
			layout:  layout{Title: d.title, Sortable: true},
			Heading: d.heading,
			Pre:     d.pre,
			Items:   d.items,
			Total:   total(d.items),
		})
		if err != nil {
			return nil, fmt.Errorf("report: %s: %w", d.name, err)
		}
		files[d.name] = html
	}

	b.log.Info("Generating index...")
	html, err := b.execute("index.tmpl", indexView{
		layout: layout{Title: "Index", Sortable: true},
		Pages:  pages,
		Counts: counts,
	})
	if err != nil {
		return nil, fmt.Errorf("report: index: %w", err)
	}
	files["index.html"] = html
	files[scriptPath] = TableSortScript

	return files, nil
}

func (b *Builder) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func total(items []Counted) int {
	n := 0
	for _, item := range items {
		n += item.Count
	}
	return n
}

// Write stores rendered files under outDir.
func (b *Builder) Write(outDir string, files map[string][]byte) error {
	b.log.Info("Writing files...", zap.String("dir", outDir), zap.Int("count", len(files)))

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(outDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	return nil
}

// Build loads resultsPath and writes the whole report to outDir.
func Build(resultsPath, outDir string, logger *zap.Logger) error {
	results, err := LoadResults(resultsPath)
	if err != nil {
		return err
	}
	pages := SortedPages(results)

	b, err := NewBuilder(logger)
	if err != nil {
		return err
	}
	files, err := b.Render(pages, CountItems(pages))
	if err != nil {
		return err
	}
	return b.Write(outDir, files)
}
