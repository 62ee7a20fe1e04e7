package urlqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := map[int]string{
		0:    "scp-000",
		7:    "scp-007",
		42:   "scp-042",
		173:  "scp-173",
		999:  "scp-999",
		1000: "scp-1000",
		6999: "scp-6999",
	}
	for n, want := range tests {
		assert.Equal(t, want, Slug(n), "Slug(%d)", n)
	}
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://scp-wiki.wikidot.com/scp-007", PageURL("https://scp-wiki.wikidot.com/", "scp-007"))
	assert.Equal(t, "http://localhost:8080/scp-007", PageURL("http://localhost:8080", "scp-007"))
}

func TestSlugQueueSkipsRecorded(t *testing.T) {
	recorded := map[string]bool{"scp-001": true, "scp-003": true}
	q := NewSlugQueue("https://wiki/", 0, 5, func(slug string) bool { return recorded[slug] })

	assert.Equal(t, 5, q.Size())

	var slugs []string
	for {
		target, ok := q.Get()
		if !ok {
			break
		}
		slugs = append(slugs, target.Slug)
	}

	assert.Equal(t, []string{"scp-000", "scp-002", "scp-004"}, slugs)
	assert.Equal(t, 0, q.Size())
}

func TestSlugQueueTarget(t *testing.T) {
	q := NewSlugQueue("https://scp-wiki.wikidot.com/", 1000, 1001, nil)

	target, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, Target{Number: 1000, Slug: "scp-1000", URL: "https://scp-wiki.wikidot.com/scp-1000"}, target)

	_, ok = q.Get()
	assert.False(t, ok)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://scp-wiki.wikidot.com/scp-173", NormalizeURL("https://www.scp-wiki.wikidot.com/scp-173#toc0"))
}

func TestComputeContentHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", ComputeContentHash(""))
}
