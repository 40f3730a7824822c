package services

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"derjachat/internal/config"
	"derjachat/internal/models"
	contextutils "derjachat/internal/utils"
)

// FillBlankPlaceholder stands in for a missing fill-in-the-blank answer
const FillBlankPlaceholder = "…"

// OptionPlaceholder labels the options added to an item that came back with
// too few of them
const OptionPlaceholder = "خيار ناقص"

// randSource is the randomness the sanitizer needs. The package-level
// math/rand/v2 functions are used unless a test injects its own.
type randSource interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// QuizSanitizer repairs model-produced items per type and drops what cannot
// be repaired. It never coerces an item into a different type.
type QuizSanitizer struct {
	cfg       config.QuizConfig
	normalize func(string) string
	rng       randSource
}

// NewQuizSanitizer creates a sanitizer. normalize is applied to every text
// field when the quiz is in the dialect; nil disables it.
func NewQuizSanitizer(cfg config.QuizConfig, normalize func(string) string) *QuizSanitizer {
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	return &QuizSanitizer{cfg: cfg, normalize: normalize, rng: globalRand{}}
}

// SanitizeResult reports what happened to the raw items
type SanitizeResult struct {
	Items      []models.QuizItem
	Disallowed int
	Invalid    int
}

// Sanitize repairs raw items against params. dialect selects whether text
// fields go through the lexical normalizer.
func (s *QuizSanitizer) Sanitize(raw []rawItem, params models.QuizParams, dialect bool) SanitizeResult {
	var res SanitizeResult
	for _, r := range raw {
		qType := models.QuestionType(strings.ToLower(r.str("type")))
		if !qType.IsValid() || !params.Allows(qType) {
			res.Disallowed++
			continue
		}

		item, ok := s.repair(r, qType, params, dialect)
		if !ok || !item.Validate() {
			res.Invalid++
			continue
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func (s *QuizSanitizer) text(v string, limit int, dialect bool) string {
	v = contextutils.CollapseWhitespace(v)
	if dialect {
		v = s.normalize(v)
	}
	return contextutils.TruncateRunes(v, limit)
}

func (s *QuizSanitizer) repair(r rawItem, qType models.QuestionType, params models.QuizParams, dialect bool) (models.QuizItem, bool) {
	item := models.QuizItem{
		Type:        qType,
		Question:    s.text(r.str("question", "prompt", "statement"), s.cfg.QuestionMaxChars, dialect),
		Explanation: s.text(r.str("explanation", "rationale"), s.cfg.ExplanationMaxChars, dialect),
	}
	if item.Question == "" {
		return item, false
	}
	if params.HintsEnabled {
		item.Hint = s.text(r.str("hint"), s.cfg.HintMaxChars, dialect)
	}

	switch qType {
	case models.QuestionMCQ:
		return s.repairMCQ(r, item, params.OptionCount, dialect)
	case models.QuestionMCMA:
		return s.repairMCMA(r, item, params.OptionCount, dialect)
	case models.QuestionTrueFalse:
		return s.repairTrueFalse(r, item)
	case models.QuestionFillBlank:
		return s.repairFillBlank(r, item, dialect)
	}
	return item, false
}

// options returns the cleaned, distinct options. Padding happens in fitOptions.
func (s *QuizSanitizer) options(r rawItem, dialect bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, o := range r.strs("options", "choices", "answers") {
		o = s.text(o, s.cfg.OptionMaxChars, dialect)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func (s *QuizSanitizer) repairMCQ(r rawItem, item models.QuizItem, optionCount int, dialect bool) (models.QuizItem, bool) {
	options := s.options(r, dialect)

	correct, found := r.index("correctIndex", "correct_index", "answerIndex")
	if !found {
		correct = indexOfAnswer(options, s.text(r.str("answer", "correctAnswer"), s.cfg.OptionMaxChars, dialect))
	}
	correct = clampIndex(correct, max(len(options), 1))

	options, fitted := fitOptions(options, []int{correct}, optionCount)
	item.Options = options
	item.CorrectIndex = models.IntPtr(fitted[0])
	return item, true
}

func (s *QuizSanitizer) repairMCMA(r rawItem, item models.QuizItem, optionCount int, dialect bool) (models.QuizItem, bool) {
	options := s.options(r, dialect)

	indices := filterIndices(r.indices("correctIndices", "correct_indices", "answers_indices"), len(options))
	if len(indices) == 0 {
		indices = []int{0}
	}

	options, indices = fitOptions(options, indices, optionCount)
	indices = filterIndices(indices, len(options))
	if len(indices) == 0 {
		indices = []int{0}
	}

	n := len(options)
	if n > 2 && len(indices) == n && s.rng.Float64() < s.cfg.MCMASubsetProbability {
		indices = s.strictSubset(n)
	}

	item.Options = options
	item.CorrectIndices = indices
	return item, true
}

// strictSubset picks a random non-empty subset of [0,n) that is not all of it
func (s *QuizSanitizer) strictSubset(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	k := 1 + s.rng.IntN(n-1)
	subset := append([]int(nil), perm[:k]...)
	sort.Ints(subset)
	return subset
}

func (s *QuizSanitizer) repairTrueFalse(r rawItem, item models.QuizItem) (models.QuizItem, bool) {
	truth, found := r.boolean("answer", "correct", "isTrue", "correctAnswer")
	if !found {
		options := r.strs("options", "choices")
		idx, hasIdx := r.index("correctIndex", "correct_index")
		switch {
		case hasIdx && idx >= 0 && idx < len(options):
			if b, ok := parseTruthLabel(options[idx]); ok {
				truth = b
			} else {
				truth = idx == 0
			}
		case hasIdx:
			truth = clampIndex(idx, 2) == 0
		default:
			truth = true
		}
	}

	item.Options = []string{models.TrueLabel, models.FalseLabel}
	if truth {
		item.CorrectIndex = models.IntPtr(0)
	} else {
		item.CorrectIndex = models.IntPtr(1)
	}
	return item, true
}

func (s *QuizSanitizer) repairFillBlank(r rawItem, item models.QuizItem, dialect bool) (models.QuizItem, bool) {
	answer := s.text(r.str("answerText", "answer", "correctAnswer"), s.cfg.AnswerMaxChars, dialect)
	if answer == "" {
		answer = FillBlankPlaceholder
	}

	acceptable := []string{answer}
	seen := map[string]bool{answer: true}
	for _, a := range r.strs("acceptableAnswers", "acceptable_answers", "alternatives") {
		a = s.text(a, s.cfg.AnswerMaxChars, dialect)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		acceptable = append(acceptable, a)
	}

	item.AnswerText = answer
	item.AcceptableAnswers = acceptable
	return item, true
}

// fitOptions pads or clamps options to want entries, moving correct options
// that would be cut into the kept range. It returns the new correct indices.
func fitOptions(options []string, correct []int, want int) ([]string, []int) {
	if want < models.MinOptionCount {
		want = models.MinOptionCount
	}

	if len(options) < want {
		return padOptions(options, want), correct
	}
	if len(options) == want {
		return options, correct
	}

	isCorrect := make(map[int]bool, len(correct))
	for _, c := range correct {
		isCorrect[c] = true
	}

	// keep every correct option (up to want-1 so one distractor survives), then fill with distractors
	keepCorrect := len(correct)
	if keepCorrect > want-1 {
		keepCorrect = want - 1
	}
	var kept []int
	for i := range options {
		if isCorrect[i] && keepCorrect > 0 {
			kept = append(kept, i)
			keepCorrect--
		}
	}
	for i := range options {
		if len(kept) >= want {
			break
		}
		if !isCorrect[i] {
			kept = append(kept, i)
		}
	}
	for i := range options {
		if len(kept) >= want {
			break
		}
		if isCorrect[i] && !containsInt(kept, i) {
			kept = append(kept, i)
		}
	}
	sort.Ints(kept)

	out := make([]string, 0, want)
	var newCorrect []int
	for newIdx, oldIdx := range kept {
		out = append(out, options[oldIdx])
		if isCorrect[oldIdx] {
			newCorrect = append(newCorrect, newIdx)
		}
	}
	return out, newCorrect
}

// padOptions appends numbered placeholders until there are want options,
// skipping any label a real option already uses
func padOptions(options []string, want int) []string {
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		seen[o] = true
	}
	padded := append([]string(nil), options...)
	for n := 1; len(padded) < want; n++ {
		label := fmt.Sprintf("(%s %d)", OptionPlaceholder, n)
		if seen[label] {
			continue
		}
		padded = append(padded, label)
	}
	return padded
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func clampIndex(i, n int) int {
	switch {
	case i < 0:
		return 0
	case i >= n:
		return n - 1
	default:
		return i
	}
}

// filterIndices keeps in-range indices, sorted and without duplicates
func filterIndices(indices []int, n int) []int {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func indexOfAnswer(options []string, answer string) int {
	if answer == "" {
		return 0
	}
	for i, o := range options {
		if strings.EqualFold(o, answer) {
			return i
		}
	}
	return 0
}

// parseTruthLabel reads true/false in the four supported languages
func parseTruthLabel(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "vrai", "yes", "صحيح", "صح", "صحيحة", "نعم", "إيه", "ايه":
		return true, true
	case "false", "faux", "no", "غالط", "غلط", "خطأ", "خاطئ", "خاطئة", "لا":
		return false, true
	}
	return false, false
}
