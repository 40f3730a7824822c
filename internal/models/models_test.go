package models

import (
	"encoding/json"
	"strings"
	"testing"

	contextutils "derjachat/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentTurns(t *testing.T) {
	history := make([]Turn, 35)
	for i := range history {
		history[i] = Turn{Sender: SenderUser, Text: string(rune('a' + i%26))}
	}

	recent := RecentTurns(history, 30)
	require.Len(t, recent, 30)
	assert.Equal(t, history[5], recent[0])
	assert.Equal(t, history[34], recent[29])

	assert.Len(t, RecentTurns(history[:3], 30), 3)
	assert.Nil(t, RecentTurns(history, 0))
}

func TestRequestedLanguage(t *testing.T) {
	assert.True(t, LanguageNone.IsDialect())
	assert.True(t, LanguageDialect.IsDialect())
	assert.False(t, LanguageEnglish.IsDialect())
	assert.Equal(t, "none", LanguageNone.String())
	assert.Equal(t, LanguageFrench, ParseRequestedLanguage("Français"))
	assert.Equal(t, LanguageNone, ParseRequestedLanguage("klingon"))
}

func TestContextBundleBlock(t *testing.T) {
	assert.Empty(t, ContextBundle{}.Block())

	block := ContextBundle{
		WebSnippet:      "الطقس في تونس مشمس",
		FetchedPageText: "page body",
		FetchedPageURL:  "https://example.tn/a",
		DocumentText:    "doc body",
	}.Block()

	webIdx := strings.Index(block, LabelWebSearch)
	pageIdx := strings.Index(block, LabelPage)
	docIdx := strings.Index(block, LabelDocument)
	assert.True(t, webIdx >= 0 && webIdx < pageIdx && pageIdx < docIdx, block)
	assert.Contains(t, block, "https://example.tn/a\npage body")

	onlyDoc := ContextBundle{DocumentText: "doc"}.Block()
	assert.Equal(t, LabelDocument+"\ndoc", onlyDoc)
}

func TestContextBundleGroundingText(t *testing.T) {
	assert.Equal(t, "doc", ContextBundle{DocumentText: "doc", WebSnippet: "web"}.GroundingText())
	assert.Equal(t, "web", ContextBundle{WebSnippet: "web"}.GroundingText())
}

func TestQuizItemValidate(t *testing.T) {
	tests := []struct {
		name string
		item QuizItem
		want bool
	}{
		{"mcq in range", QuizItem{Type: QuestionMCQ, Question: "q", Options: []string{"a", "b"}, CorrectIndex: IntPtr(1)}, true},
		{"mcq out of range", QuizItem{Type: QuestionMCQ, Question: "q", Options: []string{"a", "b"}, CorrectIndex: IntPtr(2)}, false},
		{"mcq missing index", QuizItem{Type: QuestionMCQ, Question: "q", Options: []string{"a", "b"}}, false},
		{"tf needs two options", QuizItem{Type: QuestionTrueFalse, Question: "q", Options: []string{"a", "b", "c"}, CorrectIndex: IntPtr(0)}, false},
		{"mcma empty indices", QuizItem{Type: QuestionMCMA, Question: "q", Options: []string{"a", "b", "c"}}, false},
		{"mcma ok", QuizItem{Type: QuestionMCMA, Question: "q", Options: []string{"a", "b", "c"}, CorrectIndices: []int{0, 2}}, true},
		{"fitb answer not acceptable", QuizItem{Type: QuestionFillBlank, Question: "q", AnswerText: "x", AcceptableAnswers: []string{"y"}}, false},
		{"fitb ok", QuizItem{Type: QuestionFillBlank, Question: "q", AnswerText: "x", AcceptableAnswers: []string{"x"}}, true},
		{"blank question", QuizItem{Type: QuestionFillBlank, Question: " ", AnswerText: "x", AcceptableAnswers: []string{"x"}}, false},
		{"unknown type", QuizItem{Type: "essay", Question: "q"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Validate())
		})
	}
}

func TestQuizParamsNormalize(t *testing.T) {
	timer := 0
	p := QuizParams{
		Subject:       "  تاريخ تونس ",
		QuestionCount: 99,
		OptionCount:   1,
		AllowedTypes:  []QuestionType{"TF", "essay", "tf", "mcq"},
		Difficulties:  []string{" easy", ""},
		TimerMinutes:  &timer,
	}.Normalize()

	assert.Equal(t, "تاريخ تونس", p.Subject)
	assert.Equal(t, MaxQuestionCount, p.QuestionCount)
	assert.Equal(t, MinOptionCount, p.OptionCount)
	assert.Equal(t, []QuestionType{QuestionTrueFalse, QuestionMCQ}, p.AllowedTypes)
	assert.Equal(t, []string{"easy"}, p.Difficulties)
	assert.Nil(t, p.TimerMinutes)
	assert.True(t, p.Allows(QuestionTrueFalse))
	assert.False(t, p.Allows(QuestionFillBlank))
}

func TestQuizParamsNormalizeDefaults(t *testing.T) {
	p := QuizParams{AllowedTypes: []QuestionType{"essay"}}.Normalize()

	assert.Equal(t, DefaultQuestionCount, p.QuestionCount)
	assert.Equal(t, DefaultOptionCount, p.OptionCount)
	assert.Equal(t, AllQuestionTypes, p.AllowedTypes)
}

func TestResolveMode(t *testing.T) {
	img := &InlineData{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	tests := []struct {
		name     string
		req      ChatRequest
		force    bool
		wantMode string
		wantCode contextutils.ErrorCode
	}{
		{"plain chat", ChatRequest{Message: "عسلامة", WebSearchEnabled: true}, false, "chat", ""},
		{"vision", ChatRequest{Message: "شنوة هذا؟", Image: img}, false, "vision", ""},
		{"quiz from flag", ChatRequest{Message: "الجغرافيا", QuizMode: true}, false, "quiz", ""},
		{"quiz forced by endpoint", ChatRequest{QuizParams: &QuizParams{Subject: "الرياضيات"}}, true, "quiz", ""},
		{"image with quiz rejected", ChatRequest{Message: "x", QuizMode: true, Image: img}, false, "", contextutils.ErrorCodeInvalidInput},
		{"missing message", ChatRequest{Message: "   "}, false, "", contextutils.ErrorCodeMissingRequired},
		{"quiz without subject", ChatRequest{QuizMode: true}, false, "", contextutils.ErrorCodeMissingRequired},
		{"non-image payload", ChatRequest{Message: "x", Image: &InlineData{MIMEType: "application/pdf", Data: []byte{1}}}, false, "", contextutils.ErrorCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := ResolveMode(&tt.req, tt.force)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, contextutils.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, ModeName(mode))
		})
	}
}

func TestResolveModeQuizSubjectFallsBackToMessage(t *testing.T) {
	mode, err := ResolveMode(&ChatRequest{Message: "الحرب العالمية الثانية", QuizMode: true}, false)
	require.NoError(t, err)

	quiz, ok := mode.(QuizMode)
	require.True(t, ok)
	assert.Equal(t, "الحرب العالمية الثانية", quiz.Params.Subject)
	assert.Equal(t, AllQuestionTypes, quiz.Params.AllowedTypes)
}

func TestChatRequestDecodesImage(t *testing.T) {
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"message":"hi","image":{"mimeType":"image/png","data":"AQID"}}`), &req))

	require.NotNil(t, req.Image)
	assert.Equal(t, []byte{1, 2, 3}, req.Image.Data)
	assert.Equal(t, "data:image/png;base64,AQID", req.Image.DataURL())
}
