package services

import (
	"context"
	"strings"
	"testing"

	"derjachat/internal/config"
	"derjachat/internal/dialect"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	contextutils "derjachat/internal/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

// stubRand returns fixed values so subset re-derivation is reproducible
type stubRand struct {
	f float64
	n int
}

func (s stubRand) Float64() float64 { return s.f }
func (s stubRand) IntN(int) int     { return s.n }

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{"plain array", `[{"type":"tf","question":"a"},{"type":"tf","question":"b"}]`, 2},
		{"fenced", "```json\n[{\"type\":\"tf\",\"question\":\"a\"}]\n```", 1},
		{"prose around", "هاو الكويز:\n[{\"type\":\"tf\",\"question\":\"a\"}]\nبالتوفيق!", 1},
		{"wrapper object", `{"questions":[{"type":"tf","question":"a"},{"type":"mcq","question":"b"}]}`, 2},
		{"bracket inside string", `note [draft] then [{"type":"fitb","question":"a ] b [ c"}]`, 1},
		{"thinking block", "<think>[not json]</think>[{\"type\":\"tf\",\"question\":\"a\"}]", 1},
		{"no array", "ما نجمتش نكتب كويز", 0},
		{"unbalanced", `[{"type":"tf"`, 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ExtractJSONArray(tt.response), tt.want)
		})
	}
}

func TestParseRawItems_DiscardsStructurallyInvalidItems(t *testing.T) {
	response := `[
		{"type":"mcq","question":"سؤال","options":["أ","ب"],"correctIndex":0},
		{"question":"بلا نوع"},
		"just a string",
		{"type":"tf","question":""},
		{"type":3,"question":"نوع موش نص"}
	]`

	items, discarded := ParseRawItems(response)
	require.Len(t, items, 1)
	assert.Equal(t, 4, discarded)
	assert.Equal(t, "mcq", items[0].str("type"))
}

func newTestSanitizer(rng randSource) *QuizSanitizer {
	s := NewQuizSanitizer(config.Default().Quiz, dialect.DefaultEngine().Apply)
	if rng != nil {
		s.rng = rng
	}
	return s
}

func mustRaw(t *testing.T, response string) []rawItem {
	t.Helper()
	items, discarded := ParseRawItems(response)
	require.Zero(t, discarded)
	return items
}

func testParams(types ...models.QuestionType) models.QuizParams {
	return models.QuizParams{
		Subject:       "تاريخ قرطاج",
		QuestionCount: 5,
		OptionCount:   4,
		AllowedTypes:  types,
	}.Normalize()
}

func TestSanitize_MCQ(t *testing.T) {
	s := newTestSanitizer(nil)

	t.Run("pads options and clamps the index", func(t *testing.T) {
		raw := mustRaw(t, `[{"type":"mcq","question":"شكون أسس قرطاج؟","options":["عليسة","حنبعل"],"correctIndex":7}]`)
		res := s.Sanitize(raw, testParams(models.QuestionMCQ), true)
		require.Len(t, res.Items, 1)

		item := res.Items[0]
		assert.Len(t, item.Options, 4)
		assert.Equal(t, "عليسة", item.Options[0])
		require.NotNil(t, item.CorrectIndex)
		assert.Equal(t, 1, *item.CorrectIndex)
	})

	t.Run("clamping keeps the correct option", func(t *testing.T) {
		raw := mustRaw(t, `[{"type":"mcq","question":"سؤال","options":["أ","ب","ج","د","ه","و"],"correctIndex":5}]`)
		res := s.Sanitize(raw, testParams(models.QuestionMCQ), false)
		require.Len(t, res.Items, 1)

		item := res.Items[0]
		if diff := cmp.Diff([]string{"أ", "ب", "ج", "و"}, item.Options); diff != "" {
			t.Errorf("options mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 3, *item.CorrectIndex)
	})

	t.Run("answer text selects the option", func(t *testing.T) {
		raw := mustRaw(t, `[{"type":"mcq","question":"سؤال","options":["أ","ب","ج"],"answer":"ج"}]`)
		res := s.Sanitize(raw, testParams(models.QuestionMCQ), false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, 2, *res.Items[0].CorrectIndex)
	})

	t.Run("too few options are padded with placeholders", func(t *testing.T) {
		raw := mustRaw(t, `[
			{"type":"mcq","question":"سؤال 1","options":["أ","أ",""],"correctIndex":0},
			{"type":"mcq","question":"سؤال 2","options":[],"correctIndex":2},
			{"type":"mcq","question":"سؤال 3"}
		]`)
		res := s.Sanitize(raw, testParams(models.QuestionMCQ), false)
		require.Len(t, res.Items, 3)
		assert.Zero(t, res.Invalid)

		want := []string{"أ", "(خيار ناقص 1)", "(خيار ناقص 2)", "(خيار ناقص 3)"}
		if diff := cmp.Diff(want, res.Items[0].Options); diff != "" {
			t.Errorf("options mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 0, *res.Items[0].CorrectIndex)

		for _, item := range res.Items[1:] {
			assert.Len(t, item.Options, 4)
			for _, o := range item.Options {
				assert.Contains(t, o, OptionPlaceholder)
			}
			assert.Equal(t, 0, *item.CorrectIndex)
			assert.True(t, item.Validate())
		}
	})

	t.Run("placeholders never repeat a real option", func(t *testing.T) {
		raw := mustRaw(t, `[{"type":"mcq","question":"سؤال","options":["(خيار ناقص 1)"],"correctIndex":0}]`)
		res := s.Sanitize(raw, testParams(models.QuestionMCQ), false)
		require.Len(t, res.Items, 1)

		want := []string{"(خيار ناقص 1)", "(خيار ناقص 2)", "(خيار ناقص 3)", "(خيار ناقص 4)"}
		if diff := cmp.Diff(want, res.Items[0].Options); diff != "" {
			t.Errorf("options mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSanitize_TrueFalse(t *testing.T) {
	s := newTestSanitizer(nil)
	raw := mustRaw(t, `[
		{"type":"tf","question":"قرطاج في تونس","answer":true},
		{"type":"tf","question":"قرطاج في مصر","answer":"false"},
		{"type":"TF","question":"حنبعل قائد","options":["True","False"],"correctIndex":1},
		{"type":"tf","question":"بلا جواب"}
	]`)

	res := s.Sanitize(raw, testParams(models.QuestionTrueFalse), false)
	require.Len(t, res.Items, 4)

	want := []int{0, 1, 1, 0}
	for i, item := range res.Items {
		assert.Equal(t, []string{models.TrueLabel, models.FalseLabel}, item.Options)
		assert.Equal(t, want[i], *item.CorrectIndex, "item %d", i)
	}
}

func TestSanitize_MCMA(t *testing.T) {
	const response = `[{"type":"mcma","question":"شنية المدن التونسية؟","options":["صفاقس","سوسة","بنزرت","قابس"],"correctIndices":%s}]`

	t.Run("filters and dedups indices", func(t *testing.T) {
		s := newTestSanitizer(stubRand{f: 0.99})
		raw := mustRaw(t, strings.Replace(response, "%s", "[5, 2, 2, -1, 0]", 1))
		res := s.Sanitize(raw, testParams(models.QuestionMCMA), false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, []int{0, 2}, res.Items[0].CorrectIndices)
	})

	t.Run("defaults to the first option", func(t *testing.T) {
		s := newTestSanitizer(stubRand{f: 0.99})
		raw := mustRaw(t, strings.Replace(response, "%s", "[9]", 1))
		res := s.Sanitize(raw, testParams(models.QuestionMCMA), false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, []int{0}, res.Items[0].CorrectIndices)
	})

	t.Run("all correct becomes a strict subset", func(t *testing.T) {
		s := newTestSanitizer(stubRand{f: 0.1, n: 0})
		raw := mustRaw(t, strings.Replace(response, "%s", "[0,1,2,3]", 1))
		res := s.Sanitize(raw, testParams(models.QuestionMCMA), false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, []int{1}, res.Items[0].CorrectIndices)
	})

	t.Run("all correct kept when the draw misses", func(t *testing.T) {
		s := newTestSanitizer(stubRand{f: 0.9, n: 0})
		raw := mustRaw(t, strings.Replace(response, "%s", "[0,1,2,3]", 1))
		res := s.Sanitize(raw, testParams(models.QuestionMCMA), false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, []int{0, 1, 2, 3}, res.Items[0].CorrectIndices)
	})

	t.Run("missing options are padded", func(t *testing.T) {
		s := newTestSanitizer(stubRand{f: 0.99})
		raw := mustRaw(t, `[{"type":"mcma","question":"سؤال","options":["صفاقس"],"correctIndices":[0,3]}]`)
		res := s.Sanitize(raw, testParams(models.QuestionMCMA), false)
		require.Len(t, res.Items, 1)

		item := res.Items[0]
		assert.Len(t, item.Options, 4)
		assert.Equal(t, "صفاقس", item.Options[0])
		assert.Equal(t, []int{0}, item.CorrectIndices)
		assert.True(t, item.Validate())
	})
}

func TestSanitize_FillBlank(t *testing.T) {
	s := newTestSanitizer(nil)
	raw := mustRaw(t, `[
		{"type":"fitb","question":"عاصمة تونس هي ____","answerText":"تونس","acceptableAnswers":["Tunis","تونس","Tunis",""]},
		{"type":"fitb","question":"سؤال بلا جواب ____"}
	]`)

	res := s.Sanitize(raw, testParams(models.QuestionFillBlank), false)
	require.Len(t, res.Items, 2)

	assert.Equal(t, "تونس", res.Items[0].AnswerText)
	assert.Equal(t, []string{"تونس", "Tunis"}, res.Items[0].AcceptableAnswers)

	assert.Equal(t, FillBlankPlaceholder, res.Items[1].AnswerText)
	assert.Equal(t, []string{FillBlankPlaceholder}, res.Items[1].AcceptableAnswers)
}

func TestSanitize_DropsDisallowedTypes(t *testing.T) {
	s := newTestSanitizer(nil)
	raw := mustRaw(t, `[
		{"type":"mcq","question":"سؤال","options":["أ","ب"],"correctIndex":0},
		{"type":"essay","question":"اكتب"},
		{"type":"tf","question":"صحيح ولا غالط","answer":true}
	]`)

	res := s.Sanitize(raw, testParams(models.QuestionTrueFalse), false)
	require.Len(t, res.Items, 1)
	assert.Equal(t, models.QuestionTrueFalse, res.Items[0].Type)
	assert.Equal(t, 2, res.Disallowed)
}

func TestSanitize_TextFields(t *testing.T) {
	raw := `[{"type":"tf","question":"قرطاج قديمة جدا","answer":true,"explanation":"تأسست   قبل\n\nروما","hint":"فكر في الفينيقيين"}]`

	t.Run("dialect normalizes and hints stay off", func(t *testing.T) {
		res := newTestSanitizer(nil).Sanitize(mustRaw(t, raw), testParams(models.QuestionTrueFalse), true)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "قرطاج قديمة برشا", res.Items[0].Question)
		assert.Equal(t, "تأسست قبل\n\nروما", res.Items[0].Explanation)
		assert.Empty(t, res.Items[0].Hint)
	})

	t.Run("other language is left alone and hints kept", func(t *testing.T) {
		params := testParams(models.QuestionTrueFalse)
		params.HintsEnabled = true
		res := newTestSanitizer(nil).Sanitize(mustRaw(t, raw), params, false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "قرطاج قديمة جدا", res.Items[0].Question)
		assert.Equal(t, "فكر في الفينيقيين", res.Items[0].Hint)
	})

	t.Run("fields are capped", func(t *testing.T) {
		s := newTestSanitizer(nil)
		s.cfg.QuestionMaxChars = 5
		res := s.Sanitize(mustRaw(t, raw), testParams(models.QuestionTrueFalse), false)
		require.Len(t, res.Items, 1)
		assert.Equal(t, 5, len([]rune(res.Items[0].Question)))
	})
}

func TestParseTruthLabel(t *testing.T) {
	for _, label := range []string{"صحيح", "True", "vrai", "صح"} {
		v, ok := parseTruthLabel(label)
		assert.True(t, ok, label)
		assert.True(t, v, label)
	}
	for _, label := range []string{"غالط", "FALSE", "faux", "خطأ"} {
		v, ok := parseTruthLabel(label)
		assert.True(t, ok, label)
		assert.False(t, v, label)
	}
	_, ok := parseTruthLabel("maybe")
	assert.False(t, ok)
}

func TestFallbackQuiz(t *testing.T) {
	params := models.QuizParams{
		Subject:       "الزيتون",
		QuestionCount: 7,
		OptionCount:   3,
		AllowedTypes:  []models.QuestionType{models.QuestionMCQ, models.QuestionTrueFalse, models.QuestionMCMA, models.QuestionFillBlank},
		HintsEnabled:  true,
	}

	items := FallbackQuiz(params)
	require.Len(t, items, 7)

	wantTypes := []models.QuestionType{"mcq", "tf", "mcma", "fitb", "mcq", "tf", "mcma"}
	for i, item := range items {
		assert.Equal(t, wantTypes[i], item.Type, "item %d", i)
		assert.True(t, item.Validate(), "item %d must validate", i)
		assert.Contains(t, item.Question+item.AnswerText, "الزيتون", "item %d", i)
		assert.NotEmpty(t, item.Hint)
		if item.Type == models.QuestionMCQ || item.Type == models.QuestionMCMA {
			assert.Len(t, item.Options, 3)
		}
	}

	if diff := cmp.Diff(items, FallbackQuiz(params)); diff != "" {
		t.Errorf("fallback quiz is not deterministic (-first +second):\n%s", diff)
	}
}

func TestFallbackQuiz_NormalizesParams(t *testing.T) {
	items := FallbackQuiz(models.QuizParams{Subject: "البحر"})
	require.Len(t, items, models.DefaultQuestionCount)
	for _, item := range items {
		assert.True(t, item.Validate())
		assert.Empty(t, item.Hint)
	}
}

func newTestQuizService(t *testing.T, cfg *config.Config, gen *scriptedGenerator) *QuizService {
	t.Helper()
	tm, err := NewPromptTemplateManager()
	require.NoError(t, err)

	logger := observability.NewNopLogger()
	metrics := observability.NewPipelineMetrics(noop.NewMeterProvider().Meter("test"))
	assembler := NewPromptAssembler(cfg, tm)
	enforcer := NewDialectEnforcer(cfg, dialect.DefaultEngine(), nil, assembler, logger, metrics)

	return NewQuizService(cfg, NewIntentClassifier(&cfg.Search, logger), newTestAggregator(cfg, nil, nil),
		assembler, gen, enforcer, logger, metrics)
}

func TestQuizService_ScenarioDisallowedTypesFallBack(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{`[
		{"type":"mcq","question":"سؤال 1","options":["أ","ب"],"correctIndex":0},
		{"type":"tf","question":"قرطاج في تونس","answer":true},
		{"type":"mcq","question":"سؤال 2","options":["أ","ب"],"correctIndex":1},
		{"type":"tf","question":"روما في تونس","answer":false}
	]`}}
	svc := newTestQuizService(t, config.Default(), gen)

	res := svc.Generate(context.Background(), QuizRequest{Params: models.QuizParams{
		Subject:       "قرطاج",
		QuestionCount: 6,
		AllowedTypes:  []models.QuestionType{models.QuestionTrueFalse},
	}})

	assert.True(t, res.IsDegraded())
	assert.Contains(t, res.Reason, "too few valid items")
	require.Len(t, res.Value, 6)
	for _, item := range res.Value {
		assert.Equal(t, models.QuestionTrueFalse, item.Type)
		assert.True(t, item.Validate())
	}
	assert.Equal(t, 1, gen.calls())
}

func TestQuizService_AcceptsAndTruncates(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"```json\n[" +
		`{"type":"tf","question":"قرطاج في تونس","answer":true},` +
		`{"type":"tf","question":"روما في تونس","answer":false},` +
		`{"type":"tf","question":"حنبعل قرطاجي","answer":true},` +
		`{"type":"tf","question":"عليسة ملكة","answer":true}` +
		"]\n```"}}
	svc := newTestQuizService(t, config.Default(), gen)

	res := svc.Generate(context.Background(), QuizRequest{
		Params:       models.QuizParams{Subject: "قرطاج", QuestionCount: 3, AllowedTypes: []models.QuestionType{"tf"}},
		DocumentText: "قرطاج مدينة فينيقية قديمة.",
	})

	require.False(t, res.IsDegraded(), res.Reason)
	require.Len(t, res.Value, 3)
	assert.Equal(t, "قرطاج في تونس", res.Value[0].Question)

	require.Equal(t, []string{"quiz"}, gen.purposes())
	prompt := gen.requests[0].Last().Text
	assert.Contains(t, prompt, "قرطاج مدينة فينيقية قديمة.")
	assert.Contains(t, prompt, "Exactly 3 questions")
}

func TestQuizService_SmallQuizStillNeedsMinimumItems(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{`[
		{"type":"tf","question":"قرطاج في تونس","answer":true},
		{"type":"tf","question":"روما في تونس","answer":false}
	]`}}
	svc := newTestQuizService(t, config.Default(), gen)

	res := svc.Generate(context.Background(), QuizRequest{Params: models.QuizParams{
		Subject: "قرطاج", QuestionCount: 2, AllowedTypes: []models.QuestionType{"tf"},
	}})

	assert.True(t, res.IsDegraded())
	assert.Equal(t, "too few valid items (2 of 3)", res.Reason)
	require.Len(t, res.Value, 2)
	for _, item := range res.Value {
		assert.Contains(t, item.Question+item.AnswerText, "قرطاج")
	}
}

func TestQuizService_FallbackBranches(t *testing.T) {
	tests := []struct {
		name   string
		gen    *scriptedGenerator
		reason string
	}{
		{
			name:   "generation error",
			gen:    &scriptedGenerator{errs: []error{contextutils.WrapError(contextutils.ErrAIRequestFailed, "boom")}},
			reason: "generation failed: AI_REQUEST_FAILED",
		},
		{
			name:   "prose only",
			gen:    &scriptedGenerator{replies: []string{"سامحني، ما نجمتش نحضر الكويز."}},
			reason: "no parsable items",
		},
		{
			name:   "empty response",
			gen:    &scriptedGenerator{},
			reason: "no parsable items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestQuizService(t, config.Default(), tt.gen)
			res := svc.Generate(context.Background(), QuizRequest{Params: models.QuizParams{Subject: "الكسكسي", QuestionCount: 4}})

			assert.True(t, res.IsDegraded())
			assert.Equal(t, tt.reason, res.Reason)
			assert.Len(t, res.Value, 4)
			assert.Equal(t, 1, tt.gen.calls())
		})
	}
}
