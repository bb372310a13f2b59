package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-report-service/internal/domain"
)

func TestGenerateReferencesBasic(t *testing.T) {
	fallback := testFallback(
		&domain.AcademicSource{
			Title:   "First work",
			Authors: []domain.Author{{Name: "Jane Smith"}, {Name: "John Doe"}},
			Journal: "Nature",
			Year:    2021,
			DOI:     "10.1/a",
		},
		&domain.AcademicSource{
			Title: "Second work",
			Year:  0,
			DOI:   "10.1/b",
		},
	)

	out := GenerateReferences([]string{"10.1/a", "10.1/b"}, nil, fallback, "en")

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "## References", lines[0])

	var entries []string
	for _, line := range lines {
		if strings.HasPrefix(line, "- ") {
			entries = append(entries, line)
		}
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "- Jane Smith, John Doe. 2021. First work. *Nature*. [DOI: 10.1/a](https://doi.org/10.1/a)", entries[0])
	assert.Contains(t, entries[1], "n.d.")
	assert.Contains(t, entries[1], "Second work")
}

func TestGenerateReferencesKoreanHeading(t *testing.T) {
	fallback := testFallback(&domain.AcademicSource{Title: "T", Year: 2020, DOI: "10.1/a"})

	out := GenerateReferences([]string{"10.1/a"}, nil, fallback, "ko")

	assert.True(t, strings.HasPrefix(out, "## 참고문헌"))
}

func TestGenerateReferencesOrderFollowsFirstCitation(t *testing.T) {
	fallback := testFallback(
		&domain.AcademicSource{Title: "Alpha", Year: 2020, DOI: "10.1/z"},
		&domain.AcademicSource{Title: "Beta", Year: 2021, DOI: "10.1/a"},
	)

	// Cited order z-then-a; output must not be alphabetical.
	out := GenerateReferences([]string{"10.1/z", "10.1/a"}, nil, fallback, "en")

	assert.Less(t, strings.Index(out, "10.1/z"), strings.Index(out, "10.1/a"))
}

func TestGenerateReferencesDedupesAndCountsLines(t *testing.T) {
	fallback := testFallback(
		&domain.AcademicSource{Title: "A", Year: 2020, DOI: "10.1/a"},
		&domain.AcademicSource{Title: "B", Year: 2021, DOI: "10.1/b"},
	)

	out := GenerateReferences([]string{"10.1/a", "10.1/b", "10.1/a"}, nil, fallback, "en")

	assert.Equal(t, 2, strings.Count(out, "\n- "))
}

func TestGenerateReferencesAuthorCap(t *testing.T) {
	fallback := testFallback(&domain.AcademicSource{
		Title: "Crowded paper",
		Authors: []domain.Author{
			{Name: "A One"}, {Name: "B Two"}, {Name: "C Three"}, {Name: "D Four"}, {Name: "E Five"},
		},
		Journal: "Science",
		Year:    2022,
		DOI:     "10.1/crowd",
	})

	out := GenerateReferences([]string{"10.1/crowd"}, nil, fallback, "en")

	assert.Contains(t, out, "A One, B Two, C Three, et al..")
	assert.NotContains(t, out, "D Four")
}

func TestGenerateReferencesPrefersValidatedMetadata(t *testing.T) {
	fallback := testFallback(&domain.AcademicSource{Title: "Sparse title", Year: 0, DOI: "10.1/v"})
	validated := map[string]*domain.AcademicSource{
		"10.1/v": {
			Title:   "Rich validated title",
			Authors: []domain.Author{{Name: "Jane Smith"}},
			Journal: "Cell",
			Year:    2019,
			DOI:     "10.1/v",
		},
	}

	out := GenerateReferences([]string{"10.1/v"}, validated, fallback, "en")

	assert.Contains(t, out, "Rich validated title")
	assert.Contains(t, out, "*Cell*")
	assert.Contains(t, out, "2019")
	assert.NotContains(t, out, "Sparse title")
}

func TestGenerateReferencesSkipsUnresolvable(t *testing.T) {
	out := GenerateReferences([]string{"10.9/ghost"}, nil, map[string]domain.ReferenceFallbackInfo{}, "en")

	assert.Equal(t, "## References\n", out)
}
