package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Match records one replacement made by the engine
type Match struct {
	Rule        string `json:"rule"`
	Source      string `json:"source"`
	Replacement string `json:"replacement"`
}

type compiledPattern struct {
	runes []rune
	rule  int
}

// Engine applies a rule table in a single left-to-right pass. At each word
// start it tries the longest pattern first, so a multi-word phrase is never
// shadowed by a single word it starts with.
type Engine struct {
	rules []Rule
	index map[rune][]compiledPattern
}

// NewEngine compiles rules. It rejects empty patterns, patterns claimed by two
// rules and targets that would themselves be rewritten on a second pass.
func NewEngine(rules []Rule) (*Engine, error) {
	e := &Engine{
		rules: rules,
		index: make(map[rune][]compiledPattern),
	}

	owner := make(map[string]string)
	for i, rule := range rules {
		if len(rule.Patterns) == 0 {
			return nil, fmt.Errorf("rule %q has no patterns", rule.Name)
		}
		for _, p := range rule.Patterns {
			p = norm.NFKC.String(strings.TrimSpace(p))
			if p == "" {
				return nil, fmt.Errorf("rule %q has an empty pattern", rule.Name)
			}
			if prev, ok := owner[p]; ok {
				return nil, fmt.Errorf("pattern %q claimed by rules %q and %q", p, prev, rule.Name)
			}
			owner[p] = rule.Name

			runes := []rune(p)
			e.index[runes[0]] = append(e.index[runes[0]], compiledPattern{runes: runes, rule: i})
		}
	}

	for first := range e.index {
		candidates := e.index[first]
		sort.SliceStable(candidates, func(a, b int) bool {
			return len(candidates[a].runes) > len(candidates[b].runes)
		})
	}

	for _, rule := range rules {
		for _, target := range rule.Targets() {
			if out, matches := e.apply(target); len(matches) > 0 {
				return nil, fmt.Errorf("target %q of rule %q is rewritten to %q by rule %q", target, rule.Name, out, matches[0].Rule)
			}
		}
	}

	return e, nil
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// DefaultEngine returns the engine built from DefaultRules
func DefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		e, err := NewEngine(DefaultRules)
		if err != nil {
			panic(err)
		}
		defaultEngine = e
	})
	return defaultEngine
}

// Rules returns the compiled rule table
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Apply normalizes text, rewrites every rule match and then restructures the
// comparative idiom. Applying it to its own output changes nothing.
func (e *Engine) Apply(text string) string {
	out, _ := e.ApplyWithReport(text)
	return out
}

// ApplyWithReport is Apply that also lists the replacements it made
func (e *Engine) ApplyWithReport(text string) (string, []Match) {
	if text == "" {
		return "", nil
	}
	out, matches := e.apply(norm.NFKC.String(text))
	if restructured, ok := restructureComparative(out); ok {
		matches = append(matches, Match{Rule: comparativeRuleName, Source: out, Replacement: restructured})
		// the inserted connective can complete a phrase pattern with the clause it precedes
		var more []Match
		out, more = e.apply(restructured)
		matches = append(matches, more...)
	}
	return out, matches
}

func (e *Engine) apply(text string) (string, []Match) {
	src := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text))
	var matches []Match

	for i := 0; i < len(src); {
		if i > 0 && isWordRune(src[i-1]) {
			sb.WriteRune(src[i])
			i++
			continue
		}

		cp, ok := e.matchAt(src, i)
		if !ok {
			sb.WriteRune(src[i])
			i++
			continue
		}

		end := i + len(cp.runes)
		rule := e.rules[cp.rule]
		replacement := rule.Target
		if rule.Disambiguator != nil {
			replacement = rule.Disambiguator.Resolve(wordsBefore(src, i), wordsAfter(src, end))
		}

		sb.WriteString(replacement)
		matches = append(matches, Match{Rule: rule.Name, Source: string(cp.runes), Replacement: replacement})
		i = end
	}

	return sb.String(), matches
}

func (e *Engine) matchAt(src []rune, i int) (compiledPattern, bool) {
	for _, cp := range e.index[src[i]] {
		end := i + len(cp.runes)
		if end > len(src) {
			continue
		}
		if end < len(src) && isWordRune(src[end]) {
			continue
		}
		if runesEqual(src[i:end], cp.runes) {
			return cp, true
		}
	}
	return compiledPattern{}, false
}

func runesEqual(a, b []rune) bool {
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}

// isWordRune reports whether r belongs to an Arabic word: a letter, tatweel or
// a combining mark such as shadda or tanween.
func isWordRune(r rune) bool {
	if !unicode.Is(unicode.Arabic, r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsMark(r)
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r)
}

func wordsBefore(src []rune, pos int) []string {
	return strings.FieldsFunc(string(src[:pos]), func(r rune) bool { return !isTokenRune(r) })
}

func wordsAfter(src []rune, pos int) []string {
	return strings.FieldsFunc(string(src[pos:]), func(r rune) bool { return !isTokenRune(r) })
}
