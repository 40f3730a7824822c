package services

import (
	"strings"
	"time"

	"derjachat/internal/config"
	"derjachat/internal/models"
	contextutils "derjachat/internal/utils"
)

// ContextHeader introduces the labeled grounding block appended to the live turn
const ContextHeader = "Additional context:"

// ChatPromptInput is everything a chat generation request is built from
type ChatPromptInput struct {
	Intent  models.Intent
	History []models.Turn
	Message string
	Bundle  models.ContextBundle
	Image   *models.InlineData
}

// PromptAssembler turns classified, grounded input into GenerationRequests.
// Segment order is always directive, history, live turn.
type PromptAssembler struct {
	cfg       *config.Config
	templates *PromptTemplateManager
	now       func() time.Time
}

// NewPromptAssembler creates an assembler over the given templates
func NewPromptAssembler(cfg *config.Config, templates *PromptTemplateManager) *PromptAssembler {
	return &PromptAssembler{cfg: cfg, templates: templates, now: time.Now}
}

// AssembleChat builds the conversational request. The default-locale
// directive is added for location-dependent messages and the context block
// is appended to the live turn, which also carries the image when present.
func (a *PromptAssembler) AssembleChat(in ChatPromptInput) (result0 *models.GenerationRequest, err error) {
	style, err := a.templates.RenderTemplate(StyleTemplateFor(in.Intent.Language), PromptTemplateData{
		HasContext: !in.Bundle.IsEmpty(),
	})
	if err != nil {
		return nil, err
	}

	segments := []models.Segment{{Role: models.RoleSystem, Text: style}}

	if in.Intent.IsLocationDependent {
		locale, err := a.LocaleDirective()
		if err != nil {
			return nil, err
		}
		segments = append(segments, models.Segment{Role: models.RoleSystem, Text: locale})
	}

	for _, turn := range models.RecentTurns(in.History, a.cfg.Context.MaxHistoryTurns) {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		role := models.RoleUser
		if turn.Sender == models.SenderAssistant {
			role = models.RoleModel
		}
		segments = append(segments, models.Segment{Role: role, Text: text})
	}

	current := strings.TrimSpace(in.Message)
	if block := in.Bundle.Block(); block != "" {
		current = current + "\n\n" + ContextHeader + "\n" + block
	}
	live := models.Segment{Role: models.RoleUser, Text: current}
	if in.Image != nil {
		img := *in.Image
		live.Inline = &img
	}
	segments = append(segments, live)

	return &models.GenerationRequest{
		Segments:        segments,
		Temperature:     a.cfg.Generation.ChatTemperature,
		MaxOutputTokens: a.maxTokens(a.cfg.Generation.ChatMaxTokens),
		Purpose:         "chat",
	}, nil
}

// LocaleDirective renders the default place, zone, local time and units
func (a *PromptAssembler) LocaleDirective() (string, error) {
	local, zone := contextutils.TimeInTimezone(a.now(), a.cfg.Locale.Timezone)
	return a.templates.RenderTemplate(LocaleDirectiveTemplate, PromptTemplateData{
		Place:      a.cfg.Locale.Place,
		PlaceLatin: a.cfg.Locale.PlaceLatin,
		Timezone:   zone,
		Units:      a.cfg.Locale.Units,
		Date:       local.Format("2006-01-02"),
		Time:       local.Format("15:04"),
	})
}

// AssembleRewrite builds the single dialect rewrite request for text
func (a *PromptAssembler) AssembleRewrite(text string) (result0 *models.GenerationRequest, err error) {
	style, err := a.templates.RenderTemplate(StyleDialectTemplate, PromptTemplateData{})
	if err != nil {
		return nil, err
	}
	instruction, err := a.templates.RenderTemplate(RewritePromptTemplate, PromptTemplateData{Text: text})
	if err != nil {
		return nil, err
	}

	return &models.GenerationRequest{
		Segments: []models.Segment{
			{Role: models.RoleSystem, Text: style},
			{Role: models.RoleUser, Text: instruction},
		},
		Temperature:     a.cfg.Generation.RewriteTemperature,
		MaxOutputTokens: a.maxTokens(a.cfg.Generation.RewriteMaxTokens),
		Purpose:         "rewrite",
	}, nil
}

// AssembleQuiz builds the quiz synthesis request. params must already be
// normalized. language is "" for the dialect.
func (a *PromptAssembler) AssembleQuiz(params models.QuizParams, groundingText string, language models.RequestedLanguage) (result0 *models.GenerationRequest, err error) {
	types := make([]string, 0, len(params.AllowedTypes))
	for _, t := range params.AllowedTypes {
		types = append(types, string(t))
	}

	prompt, err := a.templates.RenderTemplate(QuizPromptTemplate, PromptTemplateData{
		Subject:       params.Subject,
		Count:         params.QuestionCount,
		OptionCount:   params.OptionCount,
		Types:         types,
		Difficulties:  params.Difficulties,
		GroundingText: groundingText,
		HintsEnabled:  params.HintsEnabled,
		Language:      LanguageDisplayName(language),
		TrueLabel:     models.TrueLabel,
		FalseLabel:    models.FalseLabel,
	})
	if err != nil {
		return nil, err
	}

	return &models.GenerationRequest{
		Segments: []models.Segment{
			{Role: models.RoleSystem, Text: "You write quizzes. You output only valid JSON arrays."},
			{Role: models.RoleUser, Text: prompt},
		},
		Temperature:     a.cfg.Generation.QuizTemperature,
		MaxOutputTokens: a.maxTokens(a.cfg.Generation.QuizMaxTokens),
		Purpose:         "quiz",
	}, nil
}

func (a *PromptAssembler) maxTokens(budget int) int {
	return a.cfg.GetMaxTokensForModel(a.cfg.Generation.Provider, a.cfg.Generation.Model, budget)
}

// LanguageDisplayName names an explicitly requested non-dialect language for
// prompts. The dialect and "none" return "".
func LanguageDisplayName(lang models.RequestedLanguage) string {
	switch lang {
	case models.LanguageEnglish:
		return "English"
	case models.LanguageFrench:
		return "French"
	case models.LanguageFormal:
		return "Modern Standard Arabic"
	default:
		return ""
	}
}
