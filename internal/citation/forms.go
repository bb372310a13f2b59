package citation

import "regexp"

// Form is one recognized inline citation surface form. The DOI must be the
// pattern's first capture group. Keeping the forms as a data table lets the
// recognized grammar be tested independently of the rewrite logic.
type Form struct {
	Name    string
	Pattern *regexp.Regexp
}

// RecognizedForms lists every citation spelling the rewriter accepts, in
// priority order. When two forms match at the same offset the earlier, longer
// form wins, so the markdown-link form must precede the bare bracket form and
// the bracket-in-parens form must precede both bracket and paren forms.
var RecognizedForms = []Form{
	{
		// ([DOI: 10.1/x]) — bracket marker wrapped in parentheses.
		Name:    "paren_bracket",
		Pattern: regexp.MustCompile(`\(\[(?i:DOI):\s*([^\]]+)\]\)`),
	},
	{
		// [DOI: 10.1/x](https://doi.org/10.1/x) — markdown link form.
		Name:    "markdown_link",
		Pattern: regexp.MustCompile(`\[(?i:DOI):\s*([^\]]+)\]\(\s*[^)]*\)`),
	},
	{
		// [DOI: 10.1/x]
		Name:    "bracket",
		Pattern: regexp.MustCompile(`\[(?i:DOI):\s*([^\]]+)\]`),
	},
	{
		// (DOI: 10.1/x)
		Name:    "paren",
		Pattern: regexp.MustCompile(`\((?i:DOI):\s*([^)]+)\)`),
	},
}
