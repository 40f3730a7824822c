package models

import "strings"

// QuestionType is the tag of a quiz item
type QuestionType string

// Quiz item types
const (
	// QuestionMCQ is a single-answer multiple choice question
	QuestionMCQ QuestionType = "mcq"
	// QuestionMCMA is a multiple choice question with several correct answers
	QuestionMCMA QuestionType = "mcma"
	// QuestionTrueFalse is a true/false question
	QuestionTrueFalse QuestionType = "tf"
	// QuestionFillBlank is a fill-in-the-blank question
	QuestionFillBlank QuestionType = "fitb"
)

// AllQuestionTypes lists every supported type in canonical order
var AllQuestionTypes = []QuestionType{QuestionMCQ, QuestionMCMA, QuestionTrueFalse, QuestionFillBlank}

// True/false option labels
const (
	TrueLabel  = "صحيح"
	FalseLabel = "غالط"
)

// IsValid reports whether t is a known type tag
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionMCQ, QuestionMCMA, QuestionTrueFalse, QuestionFillBlank:
		return true
	}
	return false
}

// HasOptions reports whether items of this type carry an options array
func (t QuestionType) HasOptions() bool {
	return t != QuestionFillBlank
}

// QuizItem is a tagged union over the four question types. Only the fields of
// the item's own type are populated.
type QuizItem struct {
	Type              QuestionType `json:"type"`
	Question          string       `json:"question"`
	Options           []string     `json:"options,omitempty"`
	CorrectIndex      *int         `json:"correctIndex,omitempty"`
	CorrectIndices    []int        `json:"correctIndices,omitempty"`
	AnswerText        string       `json:"answerText,omitempty"`
	AcceptableAnswers []string     `json:"acceptableAnswers,omitempty"`
	Explanation       string       `json:"explanation"`
	Hint              string       `json:"hint,omitempty"`
}

// IntPtr returns a pointer to i
func IntPtr(i int) *int {
	return &i
}

// Validate checks the structural invariants of the item's type
func (q *QuizItem) Validate() bool {
	if strings.TrimSpace(q.Question) == "" {
		return false
	}
	switch q.Type {
	case QuestionMCQ, QuestionTrueFalse:
		if q.CorrectIndex == nil {
			return false
		}
		if q.Type == QuestionTrueFalse && len(q.Options) != 2 {
			return false
		}
		return len(q.Options) >= 2 && *q.CorrectIndex >= 0 && *q.CorrectIndex < len(q.Options)
	case QuestionMCMA:
		if len(q.Options) < 2 || len(q.CorrectIndices) == 0 {
			return false
		}
		for _, idx := range q.CorrectIndices {
			if idx < 0 || idx >= len(q.Options) {
				return false
			}
		}
		return true
	case QuestionFillBlank:
		if strings.TrimSpace(q.AnswerText) == "" {
			return false
		}
		for _, a := range q.AcceptableAnswers {
			if a == q.AnswerText {
				return true
			}
		}
		return false
	}
	return false
}

// Quiz parameter bounds
const (
	MinQuestionCount     = 2
	MaxQuestionCount     = 40
	DefaultQuestionCount = 5
	MinOptionCount       = 2
	MaxOptionCount       = 5
	DefaultOptionCount   = 4
)

// QuizParams are the caller's quiz settings
type QuizParams struct {
	Subject           string         `json:"subject"`
	QuestionCount     int            `json:"questionCount"`
	OptionCount       int            `json:"optionCount"`
	Difficulties      []string       `json:"difficulties,omitempty"`
	AllowedTypes      []QuestionType `json:"allowedTypes,omitempty"`
	TimerMinutes      *int           `json:"timerMinutes,omitempty"`
	HintsEnabled      bool           `json:"hintsEnabled"`
	ImmediateFeedback bool           `json:"immediateFeedback"`
}

// Normalize clamps the counts into range, drops unknown and duplicate type
// tags and allows every type when none remain. A zero count gets the default.
func (p QuizParams) Normalize() QuizParams {
	p.Subject = strings.TrimSpace(p.Subject)
	p.QuestionCount = clampCount(p.QuestionCount, MinQuestionCount, MaxQuestionCount, DefaultQuestionCount)
	p.OptionCount = clampCount(p.OptionCount, MinOptionCount, MaxOptionCount, DefaultOptionCount)

	seen := make(map[QuestionType]bool, len(p.AllowedTypes))
	allowed := make([]QuestionType, 0, len(p.AllowedTypes))
	for _, t := range p.AllowedTypes {
		t = QuestionType(strings.ToLower(strings.TrimSpace(string(t))))
		if !t.IsValid() || seen[t] {
			continue
		}
		seen[t] = true
		allowed = append(allowed, t)
	}
	if len(allowed) == 0 {
		allowed = append(allowed, AllQuestionTypes...)
	}
	p.AllowedTypes = allowed

	difficulties := make([]string, 0, len(p.Difficulties))
	for _, d := range p.Difficulties {
		if d = strings.TrimSpace(d); d != "" {
			difficulties = append(difficulties, d)
		}
	}
	p.Difficulties = difficulties

	if p.TimerMinutes != nil && *p.TimerMinutes <= 0 {
		p.TimerMinutes = nil
	}
	return p
}

// Allows reports whether t is in the allowed type set
func (p QuizParams) Allows(t QuestionType) bool {
	for _, allowed := range p.AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

func clampCount(v, lo, hi, def int) int {
	switch {
	case v == 0:
		return def
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
