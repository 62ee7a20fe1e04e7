package urlqueue

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"
)

// Target is one numbered page the spider should visit.
type Target struct {
	Number int
	Slug   string
	URL    string
}

// Slug builds the page identifier for an item number: three digits below
// 1000, four from there on.
func Slug(number int) string {
	if number < 1000 {
		return fmt.Sprintf("scp-%03d", number)
	}
	return fmt.Sprintf("scp-%04d", number)
}

// PageURL joins the wiki base URL and a slug.
func PageURL(baseURL, slug string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + slug
}

// SlugQueue hands out targets for [start, end) in order, skipping slugs
// the caller already has.
type SlugQueue struct {
	BaseURL string
	next    int
	end     int
	skip    func(slug string) bool
}

// NewSlugQueue creates a queue over [start, end). skip is consulted when a
// target is about to be returned; nil skips nothing.
func NewSlugQueue(baseURL string, start, end int, skip func(slug string) bool) *SlugQueue {
	if skip == nil {
		skip = func(string) bool { return false }
	}
	return &SlugQueue{
		BaseURL: baseURL,
		next:    start,
		end:     end,
		skip:    skip,
	}
}

func (q *SlugQueue) Get() (Target, bool) {
	for q.next < q.end {
		n := q.next
		q.next++

		slug := Slug(n)
		if q.skip(slug) {
			continue
		}
		return Target{Number: n, Slug: slug, URL: PageURL(q.BaseURL, slug)}, true
	}
	return Target{}, false
}

// Size is the number of numbers not yet handed out, skipped ones included.
func (q *SlugQueue) Size() int {
	if q.next >= q.end {
		return 0
	}
	return q.end - q.next
}

func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""

	parsed.Host = strings.TrimPrefix(parsed.Host, "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

func ComputeContentHash(content string) string {
	hash := md5.Sum([]byte(content))
	return fmt.Sprintf("%x", hash)
}
