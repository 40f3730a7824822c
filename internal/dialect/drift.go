package dialect

import (
	"regexp"
	"strings"
	"unicode"
)

// Thresholds tune drift detection
type Thresholds struct {
	// LatinRatio flags drift when latin letters exceed this fraction of Arabic letters
	LatinRatio float64 `json:"latinRatio"`
	// MinScriptChars and MinLatinChars flag a reply that is barely Arabic but clearly Latin
	MinScriptChars int `json:"minScriptChars"`
	MinLatinChars  int `json:"minLatinChars"`
}

// DefaultThresholds are the tuned defaults
var DefaultThresholds = Thresholds{LatinRatio: 0.3, MinScriptChars: 20, MinLatinChars: 12}

// minConnectorHits is how many foreign connector words it takes to flag drift
const minConnectorHits = 2

// Drift reasons
const (
	ReasonLatinRatio = "latin_ratio"
	ReasonLowScript  = "low_script"
	ReasonConnectors = "foreign_connectors"
)

// Report is the outcome of one drift check
type Report struct {
	Latin      int      `json:"latin"`
	Script     int      `json:"script"`
	Connectors []string `json:"connectors,omitempty"`
	Drifted    bool     `json:"drifted"`
	Reason     string   `json:"reason,omitempty"`
}

// Detector flags replies that left the Arabic script or slid into English or French
type Detector struct {
	thresholds Thresholds
	connectors map[string]bool
}

// NewDetector creates a detector. Zero thresholds fall back to the defaults.
func NewDetector(th Thresholds) *Detector {
	if th.LatinRatio <= 0 {
		th.LatinRatio = DefaultThresholds.LatinRatio
	}
	if th.MinScriptChars <= 0 {
		th.MinScriptChars = DefaultThresholds.MinScriptChars
	}
	if th.MinLatinChars <= 0 {
		th.MinLatinChars = DefaultThresholds.MinLatinChars
	}

	connectors := make(map[string]bool, len(englishConnectors)+len(frenchConnectors))
	for _, w := range englishConnectors {
		connectors[w] = true
	}
	for _, w := range frenchConnectors {
		connectors[w] = true
	}

	return &Detector{thresholds: th, connectors: connectors}
}

// Thresholds returns the effective thresholds
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

var englishConnectors = []string{
	"the", "and", "is", "are", "was", "with", "for", "of", "this", "that",
	"but", "because", "which", "there", "you", "it", "to", "in",
}

var frenchConnectors = []string{
	"le", "la", "les", "et", "est", "avec", "pour", "dans", "mais", "parce",
	"donc", "une", "des", "du", "que", "qui", "sont", "vous",
}

var (
	fencedCode   = regexp.MustCompile("(?s)```.*?```")
	inlineCode   = regexp.MustCompile("`[^`\n]*`")
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
)

// stripNonProse drops the spans whose Latin letters say nothing about the
// reply's language: code, links and e-mail addresses.
func stripNonProse(text string) string {
	text = fencedCode.ReplaceAllString(text, " ")
	text = inlineCode.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, " ")
	return emailPattern.ReplaceAllString(text, " ")
}

// Detect counts script letters and foreign connectors in text
func (d *Detector) Detect(text string) Report {
	prose := stripNonProse(text)

	var report Report
	for _, r := range prose {
		switch {
		case !unicode.IsLetter(r):
		case unicode.Is(unicode.Latin, r):
			report.Latin++
		case unicode.Is(unicode.Arabic, r):
			report.Script++
		}
	}

	hits := 0
	seen := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(prose), func(r rune) bool {
		return !unicode.Is(unicode.Latin, r) && r != '\''
	}) {
		if d.connectors[w] {
			hits++
			if !seen[w] {
				seen[w] = true
				report.Connectors = append(report.Connectors, w)
			}
		}
	}

	th := d.thresholds
	switch {
	case report.Latin > 0 && float64(report.Latin) > th.LatinRatio*float64(report.Script):
		report.Drifted, report.Reason = true, ReasonLatinRatio
	case report.Script < th.MinScriptChars && report.Latin >= th.MinLatinChars:
		report.Drifted, report.Reason = true, ReasonLowScript
	case hits >= minConnectorHits:
		report.Drifted, report.Reason = true, ReasonConnectors
	}

	return report
}
