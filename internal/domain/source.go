package domain

import (
	"strings"
)

// SourceType identifies the backend that produced a literature record.
type SourceType string

const (
	SourceTypeOpenAlex  SourceType = "openalex"
	SourceTypeWebSearch SourceType = "websearch"
)

// doiURLPrefix is the canonical resolver prefix for DOI links.
const doiURLPrefix = "https://doi.org/"

// Author represents a paper author. Citation labels use the last
// whitespace-delimited token of Name as the surname.
type Author struct {
	Name string `json:"name"`
}

// LastName returns the final whitespace-delimited token of the author's name.
func (a Author) LastName() string {
	fields := strings.Fields(a.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// AcademicSource is a literature record retrieved from a bibliographic
// backend. Records without a DOI are discarded upstream, so DOI is always
// populated here. Identity is the normalized DOI; a session's source list is
// deduplicated by that key.
type AcademicSource struct {
	Title    string   `json:"title"`
	Authors  []Author `json:"authors,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	Year     int      `json:"year,omitempty"`
	DOI      string   `json:"doi"`
	Abstract string   `json:"abstract,omitempty"`

	// Provenance records which backend produced the record.
	Provenance SourceType `json:"provenance,omitempty"`
}

// Key returns the case-folded DOI used for deduplication and allow-list
// lookups. DOIs are case-insensitive per the DOI handbook, while display
// keeps the casing the backend reported.
func (s *AcademicSource) Key() string {
	return DOIKey(s.DOI)
}

// URL returns the resolver URL derived deterministically from the DOI.
func (s *AcademicSource) URL() string {
	return doiURLPrefix + s.DOI
}

// AuthorNames returns the ordered author full names.
func (s *AcademicSource) AuthorNames() []string {
	names := make([]string, len(s.Authors))
	for i, a := range s.Authors {
		names[i] = a.Name
	}
	return names
}

// DOIKey folds a DOI for use as a map key. The suffix of a DOI is
// case-insensitive, so lookups must not depend on the casing an LLM or a
// backend happened to emit.
func DOIKey(doi string) string {
	return strings.ToLower(strings.TrimSpace(doi))
}

// DOIURL returns the doi.org resolver URL for a DOI.
func DOIURL(doi string) string {
	return doiURLPrefix + doi
}

// ReferenceFallbackInfo is the minimal bibliographic projection built from a
// session's verified sources. It is the sole ground truth against which
// generated citations are checked: a DOI absent from this map is treated as
// fabricated.
type ReferenceFallbackInfo struct {
	Authors []string `json:"authors,omitempty"`
	Year    int      `json:"year,omitempty"`
	Title   string   `json:"title"`
	Journal string   `json:"journal,omitempty"`

	// DOI keeps the display casing of the verified source's DOI.
	DOI string `json:"doi"`
}

// BuildFallbackMap projects verified sources into a DOI-keyed fallback map.
// The first source seen for a key wins, mirroring session-level dedup.
func BuildFallbackMap(sources []*AcademicSource) map[string]ReferenceFallbackInfo {
	fallback := make(map[string]ReferenceFallbackInfo, len(sources))
	for _, src := range sources {
		if src == nil || src.DOI == "" {
			continue
		}
		key := src.Key()
		if _, ok := fallback[key]; ok {
			continue
		}
		fallback[key] = ReferenceFallbackInfo{
			Authors: src.AuthorNames(),
			Year:    src.Year,
			Title:   src.Title,
			Journal: src.Journal,
			DOI:     src.DOI,
		}
	}
	return fallback
}
