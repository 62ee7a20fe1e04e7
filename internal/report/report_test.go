package report

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"style_spider/internal/models"
)

const resultsJSON = `{
    "pages": {
        "scp-1000": {"slug": "scp-1000", "title": "Bigfoot", "url": "http://scp-wiki.wikidot.com/scp-1000",
            "source": "x", "module_styles": [], "inline_styles": ["color: red"], "includes": [], "classes": ["a"]},
        "scp-002": {"slug": "scp-002", "title": "The \"Living\" Room", "url": "http://scp-wiki.wikidot.com/scp-002",
            "source": "<b>", "module_styles": [".x { }"], "inline_styles": [], "includes": ["component:image-block"], "classes": ["a", "b"]},
        "about": {"slug": "about", "title": "About", "url": "http://scp-wiki.wikidot.com/about",
            "source": "", "module_styles": [], "inline_styles": [], "includes": [], "classes": []},
        "scp-02": {"slug": "scp-02", "title": "Odd", "url": "http://scp-wiki.wikidot.com/scp-02",
            "source": "", "module_styles": [], "inline_styles": [], "includes": [], "classes": ["b"]}
    }
}`

func writeResults(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(resultsJSON), 0o644))
	return path
}

func slugs(pages []*models.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Slug
	}
	return out
}

func TestSortedPages(t *testing.T) {
	results, err := LoadResults(writeResults(t))
	require.NoError(t, err)

	// "scp-002" and "scp-02" share the zero-filled key; slug breaks the tie
	want := []string{"scp-002", "scp-02", "scp-1000", "about"}
	if diff := cmp.Diff(want, slugs(SortedPages(results))); diff != "" {
		t.Errorf("SortedPages() mismatch (-want +got):\n%s", diff)
	}
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, "0000000173", pageKey("scp-173"))
	assert.Equal(t, "0000001000", pageKey("scp-1000"))
	assert.Equal(t, "00000001-j", pageKey("scp-001-j"))
	assert.Equal(t, "tale", pageKey("tale"))
}

func TestCountItems(t *testing.T) {
	pages := []*models.Page{
		{Classes: []string{"x", "y", "z"}},
		{Classes: []string{"y", "z"}},
		{Classes: []string{"z", "w"}},
	}

	got := CountItems(pages)
	want := []Counted{
		{Item: "z", Count: 3},
		{Item: "y", Count: 2},
		{Item: "w", Count: 1},
		{Item: "x", Count: 1},
	}
	if diff := cmp.Diff(want, got.Classes); diff != "" {
		t.Errorf("CountItems() classes mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, got.ModuleStyles)
}

func TestFuncs(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	tmpl := template.Must(template.New("t").Funcs(Funcs(func() time.Time { return fixed })).Parse(
		`{{commaify 1234567}}|{{if cmp 3 ">=" 2}}yes{{end}}|{{sha1 "abc"}}|{{(now).Format "15:04"}}|{{range reverse .}}{{.Item}}{{end}}`))

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, []Counted{{Item: "a"}, {Item: "b"}}))
	assert.Equal(t, "1,234,567|yes|a9993e364706816aba3e25717850c26c9cd0d89d|02:04|ba", buf.String())
}

func TestCompareUnknownOperator(t *testing.T) {
	_, err := compare(1, "<>", 2)
	assert.Error(t, err)

	ok, err := compare(2, "!=", 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildWritesReport(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, Build(writeResults(t), out, nil))

	for _, name := range []string{
		"index.html", "module-css.html", "inline-css.html", "includes.html", "classes.html",
		"pages/scp-002.html", "pages/scp-1000.html", "pages/about.html", "static/script.js",
	} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(name)))
	}

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `id="page-list"`)
	assert.Contains(t, string(index), `onload="initTableSort()"`)
	assert.Contains(t, string(index), `href="pages/scp-002.html"`)
	assert.Contains(t, string(index), "The &#34;Living&#34; Room")
	assert.Less(t, strings.Index(string(index), "scp-002.html"), strings.Index(string(index), "scp-1000.html"))

	page, err := os.ReadFile(filepath.Join(out, "pages", "scp-002.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<pre>&lt;b&gt;</pre>")
	assert.Contains(t, string(page), `src="../static/script.js"`)
	assert.NotContains(t, string(page), "initTableSort()")

	classes, err := os.ReadFile(filepath.Join(out, "classes.html"))
	require.NoError(t, err)
	assert.Contains(t, string(classes), "2 distinct, 4 total.")

	script, err := os.ReadFile(filepath.Join(out, "static", "script.js"))
	require.NoError(t, err)
	assert.Equal(t, TableSortScript, script)
}

func TestBuildMissingResults(t *testing.T) {
	err := Build(filepath.Join(t.TempDir(), "nope.json"), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestTableSortScript(t *testing.T) {
	script := string(TableSortScript)
	assert.Contains(t, script, "getElementById('page-list')")
	assert.Contains(t, script, "{ descending: true }")
	assert.Contains(t, script, "table-sort-notice")
	assert.Contains(t, script, "alert(")
	assert.Less(t, strings.Index(script, "alert("), strings.Index(script, "new Tablesort"))
}
