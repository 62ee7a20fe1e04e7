// Package report renders the static HTML report over results.json.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"style_spider/internal/models"
)

// LoadResults reads a results.json file.
func LoadResults(path string) (*models.Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	var results models.Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	if results.Pages == nil {
		results.Pages = map[string]*models.Page{}
	}
	return &results, nil
}

// SortedPages returns the pages in report order: scp-N pages numerically,
// everything else by slug.
func SortedPages(results *models.Results) []*models.Page {
	pages := make([]*models.Page, 0, len(results.Pages))
	for _, page := range results.Pages {
		pages = append(pages, page)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		ki, kj := pageKey(pages[i].Slug), pageKey(pages[j].Slug)
		if ki != kj {
			return ki < kj
		}
		return pages[i].Slug < pages[j].Slug
	})
	return pages
}

func pageKey(slug string) string {
	if rest, ok := strings.CutPrefix(slug, "scp-"); ok {
		return zfill(rest, 10)
	}
	return slug
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
