package domain

import "strings"

// Supported report languages. The language tag only affects prompt text and
// generated labels, never control flow.
const (
	LanguageEnglish = "en"
	LanguageKorean  = "ko"
)

// NormalizeLanguage folds a user-supplied language tag to a supported
// language code. Unknown tags fall back to English.
func NormalizeLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "ko", "kr", "ko-kr", "korean", "한국어":
		return LanguageKorean
	default:
		return LanguageEnglish
	}
}
