package orchestrator

import (
	"strings"

	"github.com/helixir/research-report-service/internal/domain"
)

// referenceHeadingMarkers are line contents (case-folded, heading markers
// stripped) that open a leaked inline reference list in model output.
var referenceHeadingMarkers = map[string]struct{}{
	"references":   {},
	"reference":    {},
	"bibliography": {},
	"참고문헌":         {},
	"참고 문헌":        {},
}

// summaryHeading returns the fixed localized heading for the executive summary.
func summaryHeading(language string) string {
	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		return "## 요약"
	}
	return "## Executive Summary"
}

// noSourcesPlaceholder returns the localized placeholder report used when a
// whole session produces zero verifiable sources. Synthesizing prose without
// sources would mean uncitable content, so the run refuses instead.
func noSourcesPlaceholder(language string) string {
	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		return "검색된 학술 자료가 없어 보고서를 생성할 수 없습니다. 더 일반적인 검색어로 다시 시도해 주세요."
	}
	return "No academic sources could be found for this topic, so a report was not generated. Please try again with a broader query."
}

// cleanModelOutput strips leaked markdown heading lines and truncates at any
// leaked inline references/bibliography trailer. Section headings and the
// reference list are appended by the orchestrator itself, so anything the
// model emits for them is a duplicate.
func cleanModelOutput(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		if isReferenceHeading(line) {
			break
		}
		if isMarkdownHeading(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isMarkdownHeading reports whether the line is a markdown heading.
func isMarkdownHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#")
}

// isReferenceHeading reports whether the line opens a reference-section
// block in any supported language, with or without heading markers.
func isReferenceHeading(line string) bool {
	t := strings.ToLower(strings.TrimSpace(line))
	t = strings.TrimLeft(t, "#*")
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, ":")
	_, ok := referenceHeadingMarkers[t]
	return ok
}
