package services

import (
	"strings"
	"testing"
	"time"

	"derjachat/internal/config"
	"derjachat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler(t *testing.T) *PromptAssembler {
	t.Helper()
	tm, err := NewPromptTemplateManager()
	require.NoError(t, err)
	a := NewPromptAssembler(config.Default(), tm)
	a.now = func() time.Time { return time.Date(2026, 10, 16, 10, 5, 0, 0, time.UTC) }
	return a
}

func TestNewPromptTemplateManager_LoadsExamples(t *testing.T) {
	tm, err := NewPromptTemplateManager()
	require.NoError(t, err)
	for _, qt := range models.AllQuestionTypes {
		assert.Contains(t, tm.examples[string(qt)], `"type": "`+string(qt)+`"`)
	}
}

func TestStyleTemplateFor(t *testing.T) {
	assert.Equal(t, StyleDialectTemplate, StyleTemplateFor(models.LanguageNone))
	assert.Equal(t, StyleDialectTemplate, StyleTemplateFor(models.LanguageDialect))
	assert.Equal(t, StyleEnglishTemplate, StyleTemplateFor(models.LanguageEnglish))
	assert.Equal(t, StyleFrenchTemplate, StyleTemplateFor(models.LanguageFrench))
	assert.Equal(t, StyleFormalTemplate, StyleTemplateFor(models.LanguageFormal))
}

func TestAssembleChat_LocationDependentWeather(t *testing.T) {
	a := newTestAssembler(t)
	classifier := NewIntentClassifier(&config.Default().Search, nil)

	msg := "شنوة الطقس اليوم؟"
	intent := models.Intent{
		Language:            classifier.DetectRequestedLanguage(msg),
		NeedsWebSearch:      classifier.NeedsWebSearch(msg, true),
		IsLocationDependent: classifier.IsLocationDependent(msg),
	}
	require.True(t, intent.NeedsWebSearch)
	require.True(t, intent.IsLocationDependent)

	req, err := a.AssembleChat(ChatPromptInput{
		Intent:  intent,
		Message: msg,
		Bundle:  models.ContextBundle{WebSnippet: "مشمس، 24 درجة"},
	})
	require.NoError(t, err)

	require.Len(t, req.Segments, 3)
	assert.Equal(t, models.RoleSystem, req.Segments[0].Role)
	assert.Contains(t, req.Segments[0].Text, "Tunisian Arabic")
	assert.Equal(t, models.RoleSystem, req.Segments[1].Role)
	assert.Contains(t, req.Segments[1].Text, "تونس (Tunis)")
	assert.Contains(t, req.Segments[1].Text, "Africa/Tunis")
	assert.Contains(t, req.Segments[1].Text, "2026-10-16 11:05")
	assert.Contains(t, req.Segments[1].Text, "degrees Celsius")

	live := req.Segments[2]
	assert.Equal(t, models.RoleUser, live.Role)
	assert.True(t, strings.HasPrefix(live.Text, msg))
	assert.Contains(t, live.Text, ContextHeader+"\n"+models.LabelWebSearch+"\nمشمس، 24 درجة")
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, "chat", req.Purpose)
}

func TestAssembleChat_OrderAndHistory(t *testing.T) {
	a := newTestAssembler(t)
	a.cfg.Context.MaxHistoryTurns = 3

	history := []models.Turn{
		{Sender: models.SenderUser, Text: "dropped"},
		{Sender: models.SenderUser, Text: "أهلا"},
		{Sender: models.SenderAssistant, Text: "أهلا بيك"},
		{Sender: models.SenderUser, Text: "   "},
	}
	img := &models.InlineData{MIMEType: "image/png", Data: []byte{1, 2, 3}}

	req, err := a.AssembleChat(ChatPromptInput{
		Intent:  models.Intent{Language: models.LanguageEnglish},
		History: history,
		Message: "what is this?",
		Bundle:  models.ContextBundle{DocumentText: "doc"},
		Image:   img,
	})
	require.NoError(t, err)

	roles := make([]models.Role, 0, len(req.Segments))
	for _, s := range req.Segments {
		roles = append(roles, s.Role)
	}
	assert.Equal(t, []models.Role{models.RoleSystem, models.RoleUser, models.RoleModel, models.RoleUser}, roles)
	assert.Contains(t, req.Segments[0].Text, "English")
	assert.Equal(t, "أهلا", req.Segments[1].Text)
	assert.NotContains(t, req.Segments[1].Text, models.LabelDocument, "context never goes into history")

	last := req.Last()
	require.NotNil(t, last.Inline)
	assert.Equal(t, "image/png", last.Inline.MIMEType)
	assert.Contains(t, last.Text, models.LabelDocument+"\ndoc")
	for _, s := range req.Segments[:len(req.Segments)-1] {
		assert.Nil(t, s.Inline)
	}
}

func TestAssembleChat_NoContextNoBlock(t *testing.T) {
	a := newTestAssembler(t)
	req, err := a.AssembleChat(ChatPromptInput{Message: "  أهلا  "})
	require.NoError(t, err)
	require.Len(t, req.Segments, 2)
	assert.Equal(t, "أهلا", req.Segments[1].Text)
	assert.NotContains(t, req.Segments[0].Text, "additional context")
}

func TestAssembleRewrite(t *testing.T) {
	a := newTestAssembler(t)
	req, err := a.AssembleRewrite("The weather is nice today.")
	require.NoError(t, err)

	require.Len(t, req.Segments, 2)
	assert.Contains(t, req.Segments[1].Text, "The weather is nice today.")
	assert.Contains(t, req.Segments[1].Text, "Rewrite the following answer")
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, "rewrite", req.Purpose)
}

func TestAssembleQuiz(t *testing.T) {
	a := newTestAssembler(t)
	params := models.QuizParams{
		Subject:       "تاريخ قرطاج",
		QuestionCount: 4,
		OptionCount:   3,
		AllowedTypes:  []models.QuestionType{models.QuestionTrueFalse, models.QuestionMCQ},
		Difficulties:  []string{"easy"},
		HintsEnabled:  true,
	}.Normalize()

	req, err := a.AssembleQuiz(params, "قرطاج مدينة فينيقية.", models.LanguageNone)
	require.NoError(t, err)

	prompt := req.Last().Text
	assert.Contains(t, prompt, "Exactly 4 questions.")
	assert.Contains(t, prompt, "tf, mcq")
	assert.Contains(t, prompt, "exactly 3 options")
	assert.Contains(t, prompt, `["صحيح", "غالط"]`)
	assert.Contains(t, prompt, "قرطاج مدينة فينيقية.")
	assert.Contains(t, prompt, "Difficulty: easy.")
	assert.Contains(t, prompt, `"hint"`)
	assert.Contains(t, prompt, "single best answer")
	assert.Contains(t, prompt, "Tunisian Arabic (Derja)")
	assert.Contains(t, prompt, `"type": "tf"`)
	assert.NotContains(t, prompt, `"type": "fitb"`)
	assert.Equal(t, 0.3, req.Temperature)

	req, err = a.AssembleQuiz(params, "", models.LanguageFrench)
	require.NoError(t, err)
	assert.Contains(t, req.Last().Text, "in French")
	assert.NotContains(t, req.Last().Text, "source text")
}

func TestAssembleChat_MaxTokensCappedByModel(t *testing.T) {
	a := newTestAssembler(t)
	a.cfg.Providers = []config.ProviderConfig{{Code: "local", Models: []config.AIModel{{Code: "small", MaxTokens: 512}}}}
	a.cfg.Generation.Provider = "local"
	a.cfg.Generation.Model = "small"

	req, err := a.AssembleChat(ChatPromptInput{Message: "أهلا"})
	require.NoError(t, err)
	assert.Equal(t, 512, req.MaxOutputTokens)
}
