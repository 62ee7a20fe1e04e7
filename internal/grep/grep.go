// Package grep searches the page sources of results.json line by line.
package grep

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"style_spider/internal/models"
)

const (
	ColorAlways = "always"
	ColorNever  = "never"
	ColorAuto   = "auto"
)

// UseColor resolves a --color value against the writer results go to.
func UseColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case ColorAlways:
		return true, nil
	case ColorNever:
		return false, nil
	case ColorAuto, "":
		return IsTerminal(out), nil
	}
	return false, fmt.Errorf("invalid color mode %q (choose from always, never, auto)", mode)
}

// IsTerminal reports whether w is a file attached to a terminal. Any other
// writer is not.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Match is one matching line. Spans are byte offsets into Text.
type Match struct {
	Slug  string
	Line  int
	Text  string
	Spans [][]int
}

// Search returns every line of every page source that re matches, in
// page order.
func Search(re *regexp.Regexp, pages []*models.Page) []Match {
	var matches []Match
	for _, page := range pages {
		for i, line := range strings.Split(page.Source, "\n") {
			spans := re.FindAllStringIndex(line, -1)
			if spans == nil {
				continue
			}
			matches = append(matches, Match{Slug: page.Slug, Line: i + 1, Text: line, Spans: spans})
		}
	}
	return matches
}

type Printer struct {
	out, errOut io.Writer
	slug        *color.Color
	line        *color.Color
	match       *color.Color
	errColor    *color.Color
}

func NewPrinter(out, errOut io.Writer, useColor bool) *Printer {
	p := &Printer{
		out:      out,
		errOut:   errOut,
		slug:     color.New(color.FgMagenta),
		line:     color.New(color.FgGreen),
		match:    color.New(color.FgBlack, color.BgYellow, color.Bold),
		errColor: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.slug, p.line, p.match, p.errColor} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Print writes matches as "slug:line: text".
func (p *Printer) Print(matches []Match) error {
	for _, m := range matches {
		var b strings.Builder
		b.WriteString(p.slug.Sprint(m.Slug))
		b.WriteString(":")
		b.WriteString(p.line.Sprint(m.Line))
		b.WriteString(": ")

		last := 0
		for _, span := range m.Spans {
			b.WriteString(m.Text[last:span[0]])
			b.WriteString(p.match.Sprint(m.Text[span[0]:span[1]]))
			last = span[1]
		}
		b.WriteString(m.Text[last:])

		if _, err := fmt.Fprintln(p.out, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// Errorf reports a problem on the error stream, in red when colored.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.errOut, p.errColor.Sprintf(format, args...))
}
