package models

// StyleRecord is what the spider keeps for one wiki page.
type StyleRecord struct {
	PageSource   string   `json:"pageSource" bson:"page_source"`
	PageTitle    string   `json:"pageTitle" bson:"page_title"`
	ModuleStyles []string `json:"moduleStyles" bson:"module_styles"`
	InlineStyles []string `json:"inlineStyles" bson:"inline_styles"`
	Classes      []string `json:"classes" bson:"classes"`
}

// Document is a StyleRecord as mirrored into MongoDB.
type Document struct {
	Slug          string      `bson:"slug"`
	URL           string      `bson:"url"`
	NormalizedURL string      `bson:"normalized_url"`
	Styles        StyleRecord `bson:"styles"`
	Missing       bool        `bson:"missing"`
	ContentHash   string      `bson:"content_hash"`
	ContentLength int         `bson:"content_length"`
	LastScraped   int64       `bson:"last_scraped"`
	ScrapedCount  int         `bson:"scraped_count"`
}

type SpiderHistory struct {
	ID           string `bson:"_id"`
	RunID        string `bson:"run_id"`
	Slug         string `bson:"slug"`
	URL          string `bson:"url"`
	Attempt      int    `bson:"attempt"`
	Status       string `bson:"status"` // success, missing, error
	Timestamp    int64  `bson:"timestamp"`
	Duration     int64  `bson:"duration_ms"`
	ErrorMessage string `bson:"error_message,omitempty"`
}

// Page is one wiki page as returned by the Crom API, with its extracts.
type Page struct {
	URL           string   `json:"url"`
	Slug          string   `json:"slug"`
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	CreatedAt     string   `json:"created_at"`
	WikidotPageID string   `json:"wikidot_page_id"`
	Source        string   `json:"source"`
	ModuleStyles  []string `json:"module_styles"`
	InlineStyles  []string `json:"inline_styles"`
	Includes      []string `json:"includes"`
	Classes       []string `json:"classes"`
}

// Results is the layout of results.json consumed by build and grep.
type Results struct {
	Pages map[string]*Page `json:"pages"`
}
