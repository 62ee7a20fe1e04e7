// Package extract pulls CSS usage out of Wikidot page source and parses the
// DOM snapshots taken by the browser once the source view is open.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	reModuleCSS = regexp.MustCompile(`(?is)\[\[module +css\]\]\n(.+?)\n\[\[/module\]\]`)
	reInlineCSS = regexp.MustCompile(`(?i)style="(.+?)"[^\]]*?\]\]`)
	reIncludes  = regexp.MustCompile(`(?i)\[\[include +([a-z0-9:\-_]+?)(?: |\]\])`)
	reClasses   = regexp.MustCompile(`(?i)class="([^\]]+?)"`)
	reBreak     = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// Styles holds everything extracted from one page source.
type Styles struct {
	ModuleStyles []string
	InlineStyles []string
	Includes     []string
	Classes      []string
}

// FromSource applies every extraction rule to source.
func FromSource(source string) Styles {
	return Styles{
		ModuleStyles: ModuleStyles(source),
		InlineStyles: InlineStyles(source),
		Includes:     Includes(source),
		Classes:      Classes(source),
	}
}

// ModuleStyles returns the bodies of [[module css]] blocks.
func ModuleStyles(source string) []string {
	return firstGroups(reModuleCSS, source)
}

// InlineStyles returns style="..." values of wiki block attributes.
func InlineStyles(source string) []string {
	return firstGroups(reInlineCSS, source)
}

// Includes returns the page names of [[include ...]] directives.
func Includes(source string) []string {
	return firstGroups(reIncludes, source)
}

// Classes returns every class name used in class="..." attributes, split
// on spaces, blanks dropped.
func Classes(source string) []string {
	classes := []string{}
	for _, group := range firstGroups(reClasses, source) {
		for _, class := range strings.Split(group, " ") {
			if class != "" {
				classes = append(classes, class)
			}
		}
	}
	return classes
}

func firstGroups(re *regexp.Regexp, s string) []string {
	groups := []string{}
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		groups = append(groups, m[1])
	}
	return groups
}

// CleanSource turns the inner HTML of the .page-source element back into
// wiki markup: line breaks are dropped (the text keeps its own newlines),
// entities are decoded and the leading "\n\t" wikidot adds is removed.
func CleanSource(innerHTML string) string {
	s := reBreak.ReplaceAllString(innerHTML, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimPrefix(s, "\n\t")
}
