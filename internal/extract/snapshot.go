package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"style_spider/internal/models"
)

const (
	SelectorPageContent = "#page-content"
	SelectorPageTitle   = "#page-title"
	SelectorOptions     = "#more-options-button"
	SelectorViewSource  = "#view-source-button"
	SelectorPageSource  = ".page-source"
)

// ErrNoSource is returned when a snapshot has no .page-source element.
var ErrNoSource = errors.New("extract: can't find page source element")

var titlePolicy = bluemonday.StrictPolicy()

// Snapshot is a parsed DOM captured after the source view was opened.
type Snapshot struct {
	doc *goquery.Document
}

func ParseSnapshot(rawHTML string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extract: parse snapshot: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// PageExists reports whether the page has the options button only real
// pages carry.
func (s *Snapshot) PageExists() bool {
	return s.doc.Find(SelectorOptions).Length() > 0
}

// Title returns #page-title with markup stripped.
func (s *Snapshot) Title() string {
	inner, err := s.doc.Find(SelectorPageTitle).First().Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(inner)))
}

// Source returns the cleaned wiki markup from .page-source.
func (s *Snapshot) Source() (string, error) {
	sel := s.doc.Find(SelectorPageSource).First()
	if sel.Length() == 0 {
		return "", ErrNoSource
	}
	inner, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("extract: render page source: %w", err)
	}
	return CleanSource(inner), nil
}

// Record builds the spider's record for the snapshot.
func (s *Snapshot) Record() (*models.StyleRecord, error) {
	source, err := s.Source()
	if err != nil {
		return nil, err
	}
	return &models.StyleRecord{
		PageSource:   source,
		PageTitle:    s.Title(),
		ModuleStyles: ModuleStyles(source),
		InlineStyles: InlineStyles(source),
		Classes:      Classes(source),
	}, nil
}
