package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/helixir/research-report-service/internal/domain"
)

// sectionPreviewLen bounds the per-section preview included in the
// executive-summary prompt.
const sectionPreviewLen = 600

// buildPlanPrompt produces the planning instruction. The response must be a
// JSON object with an ordered "sections" array of title/description pairs.
func buildPlanPrompt(query, documentContext, language string) string {
	var sb strings.Builder

	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		sb.WriteString("당신은 학술 연구 보고서의 목차를 설계하는 전문 연구자입니다.\n")
		sb.WriteString("다음 연구 주제에 대한 보고서의 섹션 목차를 작성하세요.\n\n")
	} else {
		sb.WriteString("You are an expert researcher designing the outline of an academic research report.\n")
		sb.WriteString("Produce the section outline for a report on the following research topic.\n\n")
	}

	sb.WriteString("Research topic: ")
	sb.WriteString(query)
	sb.WriteString("\n")

	if documentContext != "" {
		sb.WriteString("\nAttached document context (truncated):\n")
		sb.WriteString(documentContext)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Respond with ONLY a JSON object in this exact shape, no prose before or after:
{"sections": [{"title": "...", "description": "..."}, ...]}

Rules:
- 3 to 6 sections, ordered for reading.
- Each description is 1-2 sentences of guidance for literature search and writing.
- Do NOT include a summary, executive summary, references, or bibliography section; those are generated separately.`)

	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		sb.WriteString("\n- 제목과 설명은 한국어로 작성하세요.")
	}

	return sb.String()
}

// buildKeywordPrompt asks for exactly four comma-separated search keywords,
// most important first.
func buildKeywordPrompt(title, description string) string {
	return fmt.Sprintf(`Generate exactly four academic literature search keywords for the following report section.
Order them from most to least important, separated by commas. Respond with the four keywords only, no numbering and no other text.

Section title: %s
Section focus: %s`, title, description)
}

// buildSynthesisPrompt produces the section-writing instruction with the
// verified source listing and the DOI allow-list.
func buildSynthesisPrompt(title, description string, sources []*domain.AcademicSource, language string) string {
	var sb strings.Builder

	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		sb.WriteString("당신은 학술 보고서의 한 섹션을 작성하는 전문 연구자입니다. 한국어로 작성하세요.\n\n")
	} else {
		sb.WriteString("You are an expert researcher writing one section of an academic report. Write in English.\n\n")
	}

	sb.WriteString("Section title: ")
	sb.WriteString(title)
	sb.WriteString("\nSection focus: ")
	sb.WriteString(description)
	sb.WriteString("\n\nVerified sources:\n")
	sb.WriteString(formatSourceList(sources))

	sb.WriteString("\nAllowed DOIs (cite ONLY these, verbatim):\n")
	for _, src := range sources {
		sb.WriteString("- ")
		sb.WriteString(src.DOI)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Rules:
- Cite a source inline after each factual claim using the exact form (DOI: <doi>) with a DOI from the allowed list, copied verbatim.
- Never cite a DOI that is not in the allowed list. Never invent sources.
- Write flowing prose paragraphs only: no headers, no markdown titles, no bullet lists.
- Do not include a references or bibliography list; it is generated separately.`)

	return sb.String()
}

// buildSummaryPrompt produces the executive-summary instruction from
// truncated previews of every written section.
func buildSummaryPrompt(sections []sectionResult, allowedDOIs []string, language string) string {
	var sb strings.Builder

	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		sb.WriteString("다음 보고서 섹션들을 바탕으로 2~3 문단의 요약을 한국어로 작성하세요.\n\n")
	} else {
		sb.WriteString("Write a 2-3 paragraph executive summary of the following report sections. Write in English.\n\n")
	}

	for _, sec := range sections {
		sb.WriteString("Section: ")
		sb.WriteString(sec.Title)
		sb.WriteString("\n")
		sb.WriteString(truncate(sec.Content, sectionPreviewLen))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Allowed DOIs (cite ONLY these, verbatim, in the form (DOI: <doi>)):\n")
	for _, doi := range allowedDOIs {
		sb.WriteString("- ")
		sb.WriteString(doi)
		sb.WriteString("\n")
	}

	sb.WriteString("\nWrite prose paragraphs only: no headers, no markdown titles, no reference list.")

	return sb.String()
}

// buildTitlePrompt asks for a short conversation title for the completed run.
func buildTitlePrompt(query, language string) string {
	if domain.NormalizeLanguage(language) == domain.LanguageKorean {
		return fmt.Sprintf("다음 연구 주제를 설명하는 6단어 이하의 짧은 제목을 작성하세요. 제목만 답하세요.\n\n주제: %s", query)
	}
	return fmt.Sprintf("Write a short title, six words or fewer, describing the following research topic. Respond with the title only.\n\nTopic: %s", query)
}

// formatSourceList renders sources for prompt inclusion with DOI, authors,
// journal, year, and abstract.
func formatSourceList(sources []*domain.AcademicSource) string {
	var sb strings.Builder
	for i, src := range sources {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, src.Title))
		sb.WriteString("   DOI: ")
		sb.WriteString(src.DOI)
		sb.WriteString("\n")
		if names := src.AuthorNames(); len(names) > 0 {
			sb.WriteString("   Authors: ")
			sb.WriteString(strings.Join(names, ", "))
			sb.WriteString("\n")
		}
		if src.Journal != "" {
			sb.WriteString("   Journal: ")
			sb.WriteString(src.Journal)
			sb.WriteString("\n")
		}
		if src.Year != 0 {
			sb.WriteString(fmt.Sprintf("   Year: %d\n", src.Year))
		}
		if src.Abstract != "" {
			sb.WriteString("   Abstract: ")
			sb.WriteString(truncate(src.Abstract, 1200))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// truncate returns at most n bytes of s, cutting back to a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
