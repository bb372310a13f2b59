package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthor_LastName(t *testing.T) {
	tests := []struct {
		name     string
		author   Author
		expected string
	}{
		{"first and last", Author{Name: "Jane Smith"}, "Smith"},
		{"middle name", Author{Name: "John Q. Public"}, "Public"},
		{"single token", Author{Name: "Aristotle"}, "Aristotle"},
		{"extra whitespace", Author{Name: "  Ada   Lovelace  "}, "Lovelace"},
		{"empty name", Author{Name: ""}, ""},
		{"whitespace only", Author{Name: "   "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.author.LastName())
		})
	}
}

func TestDOIKey(t *testing.T) {
	tests := []struct {
		name     string
		doi      string
		expected string
	}{
		{"lowercase passthrough", "10.1234/abc", "10.1234/abc"},
		{"folds uppercase", "10.1234/ABC.Def", "10.1234/abc.def"},
		{"trims whitespace", "  10.1/a \n", "10.1/a"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DOIKey(tt.doi))
		})
	}
}

func TestAcademicSource_Key(t *testing.T) {
	t.Run("same DOI different casing yield same key", func(t *testing.T) {
		a := &AcademicSource{DOI: "10.1038/Nature12373"}
		b := &AcademicSource{DOI: "10.1038/NATURE12373"}
		assert.Equal(t, a.Key(), b.Key())
	})
}

func TestAcademicSource_URL(t *testing.T) {
	t.Run("resolver URL keeps display casing", func(t *testing.T) {
		src := &AcademicSource{DOI: "10.1038/Nature12373"}
		assert.Equal(t, "https://doi.org/10.1038/Nature12373", src.URL())
	})
}

func TestDOIURL(t *testing.T) {
	assert.Equal(t, "https://doi.org/10.1/a", DOIURL("10.1/a"))
}

func TestAcademicSource_AuthorNames(t *testing.T) {
	t.Run("ordered full names", func(t *testing.T) {
		src := &AcademicSource{
			Authors: []Author{{Name: "Jane Smith"}, {Name: "John Doe"}},
		}
		assert.Equal(t, []string{"Jane Smith", "John Doe"}, src.AuthorNames())
	})

	t.Run("no authors", func(t *testing.T) {
		src := &AcademicSource{}
		assert.Empty(t, src.AuthorNames())
	})
}

func TestBuildFallbackMap(t *testing.T) {
	t.Run("projects sources keyed by folded DOI", func(t *testing.T) {
		sources := []*AcademicSource{
			{
				Title:   "Paper A",
				Authors: []Author{{Name: "Jane Smith"}},
				Journal: "Nature",
				Year:    2012,
				DOI:     "10.1/A",
			},
			{
				Title: "Paper B",
				Year:  2020,
				DOI:   "10.1/b",
			},
		}

		fallback := BuildFallbackMap(sources)

		require.Len(t, fallback, 2)
		a, ok := fallback["10.1/a"]
		require.True(t, ok)
		assert.Equal(t, "Paper A", a.Title)
		assert.Equal(t, []string{"Jane Smith"}, a.Authors)
		assert.Equal(t, 2012, a.Year)
		assert.Equal(t, "Nature", a.Journal)
		// Display casing preserved on the value.
		assert.Equal(t, "10.1/A", a.DOI)
	})

	t.Run("first source wins on duplicate key", func(t *testing.T) {
		sources := []*AcademicSource{
			{Title: "First", DOI: "10.1/dup"},
			{Title: "Second", DOI: "10.1/DUP"},
		}

		fallback := BuildFallbackMap(sources)

		require.Len(t, fallback, 1)
		assert.Equal(t, "First", fallback["10.1/dup"].Title)
	})

	t.Run("skips nil and DOI-less entries", func(t *testing.T) {
		sources := []*AcademicSource{
			nil,
			{Title: "No DOI"},
			{Title: "Keeper", DOI: "10.1/k"},
		}

		fallback := BuildFallbackMap(sources)

		require.Len(t, fallback, 1)
		assert.Equal(t, "Keeper", fallback["10.1/k"].Title)
	})

	t.Run("empty input yields empty map", func(t *testing.T) {
		assert.Empty(t, BuildFallbackMap(nil))
	})
}
