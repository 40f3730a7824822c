package contextutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizedMessages_FallsBackToDialect(t *testing.T) {
	lm := NewLocalizedMessages()
	lm.AddMessage(ErrorCodeInvalidInput, LocaleDialect, "الطلب موش صحيح")
	lm.AddMessage(ErrorCodeInvalidInput, LocaleEnglish, "Invalid input")

	assert.Equal(t, "Invalid input", lm.GetMessage(ErrorCodeInvalidInput, LocaleEnglish))
	assert.Equal(t, "الطلب موش صحيح", lm.GetMessage(ErrorCodeInvalidInput, LocaleFrench))
	assert.Equal(t, "An error occurred", lm.GetMessage(ErrorCode("UNKNOWN"), LocaleEnglish))
}

func TestDefaultMessage(t *testing.T) {
	assert.Equal(t, "Internal server error", DefaultMessage(ErrorCodeInternalError))
	assert.Equal(t, "Page fetch failed", DefaultMessage(ErrorCodeFetchFailed))
	assert.Equal(t, "An error occurred", DefaultMessage(ErrorCode("UNKNOWN")))

	// the category text is not the soft reply shown to the user
	assert.NotEqual(t, SoftFailureMessage(LocaleEnglish), DefaultMessage(ErrorCodeInternalError))
	assert.NotContains(t, strings.ToLower(DefaultMessage(ErrorCodeAIRequestFailed)), "gemini")
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, LocaleEnglish, ParseLocale("en-US"))
	assert.Equal(t, LocaleFrench, ParseLocale("FR"))
	assert.Equal(t, LocaleFormal, ParseLocale("ar-TN"))
	assert.Equal(t, LocaleDialect, ParseLocale("aeb"))
	assert.Equal(t, LocaleDialect, ParseLocale(""))
	assert.Equal(t, LocaleDialect, ParseLocale("de"))
}

func TestSoftFailureMessage(t *testing.T) {
	assert.Equal(t, softFailureDialect, SoftFailureMessage(LocaleDialect))
	assert.Equal(t, softFailureEnglish, SoftFailureMessage(LocaleEnglish))
	assert.NotContains(t, SoftFailureMessage(LocaleEnglish), "OpenAI")
}
