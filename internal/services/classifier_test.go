package services

import (
	"context"
	"testing"

	"derjachat/internal/config"
	"derjachat/internal/models"

	"github.com/stretchr/testify/assert"
)

func newTestClassifier() *IntentClassifier {
	return NewIntentClassifier(&config.Default().Search, nil)
}

func TestClassify_WeatherWithoutPlace(t *testing.T) {
	c := newTestClassifier()

	intent := c.Classify(context.Background(), "شنوة الطقس اليوم؟", models.ToolToggles{WebSearch: true})

	assert.True(t, intent.NeedsWebSearch)
	assert.True(t, intent.IsLocationDependent)
	assert.Equal(t, models.LanguageNone, intent.Language)
	assert.True(t, intent.Language.IsDialect())
	assert.False(t, intent.WantsExport)
}

func TestDetectRequestedLanguage(t *testing.T) {
	c := newTestClassifier()
	tests := []struct {
		msg  string
		want models.RequestedLanguage
	}{
		{"answer in english: hello", models.LanguageEnglish},
		{"Reply to me in English please", models.LanguageEnglish},
		{"جاوبني بالانجليزية على السؤال هذا", models.LanguageEnglish},
		{"réponds en français stp", models.LanguageFrench},
		{"احكيلي بالفرنساوي", models.LanguageFrench},
		{"اكتبلي الجواب بالفصحى", models.LanguageFormal},
		{"explain it in standard arabic", models.LanguageFormal},
		{"قولهالي بالتونسي", models.LanguageDialect},
		{"in french please, not in english please", models.LanguageFrench},
		{"شنوة أحوالك؟", models.LanguageNone},
		{"english is a hard language", models.LanguageNone},
		{"", models.LanguageNone},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DetectRequestedLanguage(tt.msg))
		})
	}
}

func TestNeedsWebSearch(t *testing.T) {
	c := newTestClassifier()
	tests := []struct {
		name    string
		msg     string
		enabled bool
		want    bool
	}{
		{"disabled", "شنوة آخر الأخبار اليوم؟", false, false},
		{"too short", "وين؟", true, false},
		{"question mark", "قداش عمر الجامع الكبير؟", true, true},
		{"year", "نتيجة الانتخابات 2026 كانت كيفاش", true, true},
		{"recency word", "what happened yesterday in the league", true, true},
		{"topic word", "نحب نعرف سعر الذهب", true, true},
		{"small talk", "نحبك برشا يا صاحبي", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.NeedsWebSearch(tt.msg, tt.enabled))
		})
	}
}

func TestIsLocationDependent(t *testing.T) {
	c := newTestClassifier()
	tests := []struct {
		msg  string
		want bool
	}{
		{"شنوة الطقس اليوم؟", true},
		{"what's the weather like tomorrow", true},
		{"شنوة الطقس في صفاقس؟", false},
		{"الطقس بسوسة كيفاش؟", false},
		{"weather in Paris", false},
		{"météo demain", true},
		{"شنوة أحوالك؟", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsLocationDependent(tt.msg))
		})
	}
}

func TestDetectExport(t *testing.T) {
	c := newTestClassifier()

	assert.True(t, c.DetectExport("اعملي ملخص وصدّرلي pdf"))
	assert.True(t, c.DetectExport("Export this as a PDF"))
	assert.False(t, c.DetectExport("عطيني ملخص"))
}

func TestClassify_IsTotal(t *testing.T) {
	c := newTestClassifier()
	inputs := []string{"", "   ", "\x00\xff\xfe", "؟؟؟", "12345", "🙂🙂🙂", "ـــــ"}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			intent := c.Classify(context.Background(), in, models.ToolToggles{WebSearch: true, URLFetch: true})
			assert.False(t, intent.IsLocationDependent)
			assert.False(t, intent.WantsExport)
		})
	}
}
