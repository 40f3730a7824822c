package services

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"derjachat/internal/models"
	contextutils "derjachat/internal/utils"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

//go:embed templates/examples/*.json
var exampleFilesFS embed.FS

// Template names as constants
const (
	StyleDialectTemplate    = "style_dialect.tmpl"
	StyleEnglishTemplate    = "style_english.tmpl"
	StyleFrenchTemplate     = "style_french.tmpl"
	StyleFormalTemplate     = "style_formal.tmpl"
	LocaleDirectiveTemplate = "locale_directive.tmpl"
	RewritePromptTemplate   = "rewrite_prompt.tmpl"
	QuizPromptTemplate      = "quiz_prompt.tmpl"
)

// PromptTemplateData holds data for rendering prompt templates
type PromptTemplateData struct {
	// Style directive
	HasContext bool

	// Locale directive
	Place      string
	PlaceLatin string
	Timezone   string
	Units      string
	Date       string
	Time       string

	// Rewrite
	Text string

	// Quiz
	Subject       string
	Count         int
	OptionCount   int
	Types         []string
	Difficulties  []string
	GroundingText string
	HintsEnabled  bool
	Language      string
	TrueLabel     string
	FalseLabel    string
	Examples      map[string]string
}

// PromptTemplateManager renders the embedded prompt templates
type PromptTemplateManager struct {
	templates *template.Template
	examples  map[string]string
}

// NewPromptTemplateManager parses every embedded template and loads the
// per-type quiz examples.
func NewPromptTemplateManager() (result0 *PromptTemplateManager, err error) {
	templates, err := template.New("").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse prompt templates: %v", err)
	}

	tm := &PromptTemplateManager{templates: templates, examples: make(map[string]string)}
	for _, qt := range models.AllQuestionTypes {
		example, err := tm.LoadExample(string(qt))
		if err != nil {
			return nil, err
		}
		tm.examples[string(qt)] = strings.TrimSpace(example)
	}
	return tm, nil
}

// RenderTemplate renders a template with the given data
func (tm *PromptTemplateManager) RenderTemplate(templateName string, data PromptTemplateData) (result0 string, err error) {
	if data.Examples == nil {
		data.Examples = tm.examples
	}
	var buf strings.Builder
	if err := tm.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to render %s: %v", templateName, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// LoadExample loads the example JSON item for a question type
func (tm *PromptTemplateManager) LoadExample(questionType string) (result0 string, err error) {
	examplePath := fmt.Sprintf("templates/examples/%s_example.json", questionType)
	content, err := exampleFilesFS.ReadFile(examplePath)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load example for %s: %v", questionType, err)
	}
	return string(content), nil
}

// StyleTemplateFor returns the style directive template for a reply language
func StyleTemplateFor(lang models.RequestedLanguage) string {
	switch lang.Resolved() {
	case models.LanguageEnglish:
		return StyleEnglishTemplate
	case models.LanguageFrench:
		return StyleFrenchTemplate
	case models.LanguageFormal:
		return StyleFormalTemplate
	default:
		return StyleDialectTemplate
	}
}
