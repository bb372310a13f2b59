// Package citation implements the citation-integrity subsystem: DOI
// normalization, inline citation extraction and rewriting against a verified
// source allow-list, and references-section generation.
//
// The package enforces a strict allow-list model. An LLM's claim of a DOI is
// never trusted on its own: every inline citation is cross-referenced against
// the session's verified source map, and citations that do not resolve are
// removed from the text entirely.
package citation

import (
	"net/url"
	"regexp"
	"strings"
)

// markdownLinkPattern matches a whole-string markdown link [text](target).
var markdownLinkPattern = regexp.MustCompile(`^\[([^\]]*)\]\(([^)]*)\)$`)

// doi.org resolver prefixes stripped during normalization.
var doiURLPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
}

// trailingPunctuation holds sentence-boundary characters that get glued onto
// a DOI when it ends a clause: `... (DOI: 10.1/x).` captures "10.1/x).".
const trailingPunctuation = ".,;:!?)]"

// NormalizeDOI reduces any of the DOI surface spellings to the canonical bare
// form. It strips a wrapping markdown link pointing at doi.org, a leading
// "doi:" label, a doi.org resolver URL prefix, percent-escapes, and trailing
// sentence punctuation. The function is idempotent:
// NormalizeDOI(NormalizeDOI(x)) == NormalizeDOI(x).
//
// Casing is preserved; use domain.DOIKey for case-insensitive comparison.
func NormalizeDOI(raw string) string {
	s := strings.TrimSpace(raw)

	// Unwrap a markdown link whose target is a doi.org URL; the link text
	// carries the DOI spelling the author intended.
	if m := markdownLinkPattern.FindStringSubmatch(s); m != nil && strings.Contains(strings.ToLower(m[2]), "doi.org") {
		s = strings.TrimSpace(m[1])
	}

	lower := strings.ToLower(s)
	for _, prefix := range doiURLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			lower = strings.ToLower(s)
			break
		}
	}

	if strings.HasPrefix(lower, "doi:") {
		s = strings.TrimSpace(s[len("doi:"):])
	}

	if strings.Contains(s, "%") {
		if decoded, err := url.PathUnescape(s); err == nil {
			s = decoded
		}
	}

	s = strings.TrimRight(s, trailingPunctuation)
	return strings.TrimSpace(s)
}
