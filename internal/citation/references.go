package citation

import (
	"strings"

	"github.com/helixir/research-report-service/internal/domain"
)

// maxDisplayedAuthors caps the author list of a bibliography line before
// collapsing to "et al.".
const maxDisplayedAuthors = 3

// ReferencesHeading returns the localized heading line for the generated
// references section.
func ReferencesHeading(language string) string {
	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		return "## 참고문헌"
	}
	return "## References"
}

// GenerateReferences renders the canonical references section for a report.
// citedDOIs is the first-citation-ordered output of FilterCitations; the
// reference list deliberately traces the reading order of the report rather
// than alphabetical order. For each entry, richer validated metadata (from an
// optional secondary bibliographic lookup) is preferred over the fallback
// projection; entries resolvable from neither are skipped.
func GenerateReferences(
	citedDOIs []string,
	validated map[string]*domain.AcademicSource,
	fallback map[string]domain.ReferenceFallbackInfo,
	language string,
) string {
	var sb strings.Builder
	sb.WriteString(ReferencesHeading(language))
	sb.WriteString("\n")

	seen := make(map[string]struct{}, len(citedDOIs))
	for _, doi := range citedDOIs {
		key := domain.DOIKey(NormalizeDOI(doi))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		line, ok := referenceLine(key, validated, fallback)
		if !ok {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	return sb.String()
}

// referenceLine formats one bibliography entry as
// `- Author1, Author2, Author3, et al.. Year. Title. *Journal*. [DOI: d](url)`.
func referenceLine(key string, validated map[string]*domain.AcademicSource, fallback map[string]domain.ReferenceFallbackInfo) (string, bool) {
	var (
		authors []string
		year    int
		title   string
		journal string
		doi     string
	)

	if src, ok := validated[key]; ok && src != nil {
		authors = src.AuthorNames()
		year = src.Year
		title = src.Title
		journal = src.Journal
		doi = src.DOI
	} else if info, ok := fallback[key]; ok {
		authors = info.Authors
		year = info.Year
		title = info.Title
		journal = info.Journal
		doi = info.DOI
	} else {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("- ")
	sb.WriteString(authorList(authors))
	sb.WriteString(". ")
	sb.WriteString(YearLabel(year))
	sb.WriteString(". ")
	sb.WriteString(strings.TrimSpace(title))
	sb.WriteString(".")
	if journal != "" {
		sb.WriteString(" *")
		sb.WriteString(journal)
		sb.WriteString("*.")
	}
	sb.WriteString(" [DOI: ")
	sb.WriteString(doi)
	sb.WriteString("](")
	sb.WriteString(domain.DOIURL(doi))
	sb.WriteString(")")
	return sb.String(), true
}

// authorList joins up to maxDisplayedAuthors full names, collapsing the
// remainder to "et al.".
func authorList(authors []string) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	if len(authors) <= maxDisplayedAuthors {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:maxDisplayedAuthors], ", ") + ", et al."
}
