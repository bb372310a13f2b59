package citation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/helixir/research-report-service/internal/domain"
)

// FilterResult is the outcome of a citation filter-and-rewrite pass.
type FilterResult struct {
	// ProcessedContent is the input text with every verified citation
	// rewritten to its author-year display form and every unverifiable
	// citation deleted.
	ProcessedContent string

	// CitedDOIs lists each verified DOI once, in order of first citation in
	// the document. Casing follows the verified source record.
	CitedDOIs []string

	// RemovedDOIs lists the normalized DOIs of citations that did not
	// resolve against the fallback map and were removed as fabricated or
	// unverifiable.
	RemovedDOIs []string
}

// match is one located citation marker within the scanned text.
type match struct {
	start, end int
	form       int
	doi        string
}

// FilterCitations scans text for every recognized inline citation marker and
// checks each against fallback, the DOI-keyed projection of the session's
// verified sources. Verified citations are rewritten to a humanized
// author-year markdown link; unverified citations are deleted outright,
// never left as dangling raw DOIs.
func FilterCitations(text string, fallback map[string]domain.ReferenceFallbackInfo) FilterResult {
	matches := findMatches(text)

	var (
		sb          strings.Builder
		cited       []string
		removed     []string
		seenCited   = make(map[string]struct{})
		seenRemoved = make(map[string]struct{})
		pos         int
	)
	sb.Grow(len(text))

	for _, m := range matches {
		sb.WriteString(text[pos:m.start])
		pos = m.end

		doi := NormalizeDOI(m.doi)
		key := domain.DOIKey(doi)

		info, ok := fallback[key]
		if !ok {
			if _, dup := seenRemoved[key]; !dup {
				seenRemoved[key] = struct{}{}
				removed = append(removed, doi)
			}
			continue
		}

		if _, dup := seenCited[key]; !dup {
			seenCited[key] = struct{}{}
			cited = append(cited, info.DOI)
		}
		sb.WriteString(formatInlineCitation(info))
	}
	sb.WriteString(text[pos:])

	return FilterResult{
		ProcessedContent: sb.String(),
		CitedDOIs:        cited,
		RemovedDOIs:      removed,
	}
}

// findMatches locates all citation markers in document order. Overlapping
// candidates (a bracket form nested inside a markdown link, or a bracket
// inside a paren wrapper) collapse to the earliest-starting, longest match.
func findMatches(text string) []match {
	var all []match
	for i, form := range RecognizedForms {
		for _, loc := range form.Pattern.FindAllStringSubmatchIndex(text, -1) {
			all = append(all, match{
				start: loc[0],
				end:   loc[1],
				form:  i,
				doi:   text[loc[2]:loc[3]],
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		if all[i].end != all[j].end {
			return all[i].end > all[j].end
		}
		return all[i].form < all[j].form
	})

	kept := all[:0]
	lastEnd := -1
	for _, m := range all {
		if m.start < lastEnd {
			continue
		}
		kept = append(kept, m)
		lastEnd = m.end
	}
	return kept
}

// formatInlineCitation renders a verified citation as
// ([<Author Label> <Year>](https://doi.org/<doi>)).
func formatInlineCitation(info domain.ReferenceFallbackInfo) string {
	return "([" + AuthorLabel(info.Authors) + " " + YearLabel(info.Year) + "](" + domain.DOIURL(info.DOI) + "))"
}

// AuthorLabel builds the humanized author part of an inline citation:
// "Unknown" for no authors, a single surname, "A and B" for two, and
// "A et al." for three or more. The surname is the final
// whitespace-delimited token of the full name.
func AuthorLabel(authors []string) string {
	switch len(authors) {
	case 0:
		return "Unknown"
	case 1:
		return lastName(authors[0])
	case 2:
		return lastName(authors[0]) + " and " + lastName(authors[1])
	default:
		return lastName(authors[0]) + " et al."
	}
}

// YearLabel renders a publication year, using "n.d." when the year is
// unknown.
func YearLabel(year int) string {
	if year <= 0 {
		return "n.d."
	}
	return strconv.Itoa(year)
}

// lastName extracts the final whitespace-delimited token of a full name.
func lastName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[len(fields)-1]
}
