package dialect

import (
	"regexp"
	"strings"
)

const comparativeRuleName = "comparative"

// "برشا X، برشا Y" -> "كل ما X، كل ما Y". The leading group stands in for a
// word boundary since RE2 has no lookbehind.
var comparativePattern = regexp.MustCompile(`(^|[^\p{L}\p{M}])برشا[ \t]+([^،,.!؟?\n]+?)[ \t]*([،,])[ \t]*برشا[ \t]+([^،,.!؟?\n]+)`)

// restructureComparative rewrites the two-clause "much X, much Y" idiom into
// its canonical comparative connective form.
func restructureComparative(text string) (string, bool) {
	if !strings.Contains(text, "برشا") {
		return text, false
	}
	out := comparativePattern.ReplaceAllString(text, "${1}كل ما ${2}${3} كل ما ${4}")
	return out, out != text
}
