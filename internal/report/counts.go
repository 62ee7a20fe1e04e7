package report

import (
	"slices"
	"sort"

	"style_spider/internal/models"
)

// Counted is one distinct extract and the number of times it was seen.
type Counted struct {
	Item  string
	Count int
}

type Counts struct {
	ModuleStyles []Counted
	InlineStyles []Counted
	Includes     []Counted
	Classes      []Counted
}

// CountItems tallies every extract across pages. Each list is ordered by
// count, highest first; equal counts come in reverse order of first sight.
func CountItems(pages []*models.Page) Counts {
	var moduleStyles, inlineStyles, includes, classes tally
	for _, page := range pages {
		moduleStyles.add(page.ModuleStyles)
		inlineStyles.add(page.InlineStyles)
		includes.add(page.Includes)
		classes.add(page.Classes)
	}
	return Counts{
		ModuleStyles: moduleStyles.sorted(),
		InlineStyles: inlineStyles.sorted(),
		Includes:     includes.sorted(),
		Classes:      classes.sorted(),
	}
}

type tally struct {
	order []string
	seen  map[string]int
}

func (t *tally) add(items []string) {
	if t.seen == nil {
		t.seen = make(map[string]int)
	}
	for _, item := range items {
		if _, ok := t.seen[item]; !ok {
			t.order = append(t.order, item)
		}
		t.seen[item]++
	}
}

func (t *tally) sorted() []Counted {
	items := make([]Counted, 0, len(t.order))
	for _, item := range t.order {
		items = append(items, Counted{Item: item, Count: t.seen[item]})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Count < items[j].Count })
	slices.Reverse(items)
	return items
}
