package contextutils

import (
	"strings"
)

// Locale identifies the language a user-facing message is rendered in
type Locale string

const (
	// LocaleDialect is Tunisian Arabic in Arabic script, the default reply language
	LocaleDialect Locale = "aeb"
	// LocaleFormal is Modern Standard Arabic
	LocaleFormal Locale = "ar"
	// LocaleEnglish represents English language
	LocaleEnglish Locale = "en"
	// LocaleFrench represents French language
	LocaleFrench Locale = "fr"
)

// LocalizedMessages contains localized user-facing messages keyed by error code
type LocalizedMessages struct {
	messages map[ErrorCode]map[Locale]string
}

// NewLocalizedMessages creates a new instance of localized messages
func NewLocalizedMessages() *LocalizedMessages {
	return &LocalizedMessages{
		messages: make(map[ErrorCode]map[Locale]string),
	}
}

// AddMessage adds a localized message for a specific error code and locale
func (lm *LocalizedMessages) AddMessage(code ErrorCode, locale Locale, message string) {
	if lm.messages[code] == nil {
		lm.messages[code] = make(map[Locale]string)
	}
	lm.messages[code][locale] = message
}

// GetMessage returns the localized message for an error code and locale.
// Missing locales fall back to the dialect, then to a built-in English text.
func (lm *LocalizedMessages) GetMessage(code ErrorCode, locale Locale) string {
	if localeMessages, exists := lm.messages[code]; exists {
		if message, exists := localeMessages[locale]; exists {
			return message
		}
		if message, exists := localeMessages[LocaleDialect]; exists {
			return message
		}
	}

	return DefaultMessage(code)
}

// DefaultMessage is the built-in English text for an error code. It names the
// failure category only, so it is safe to return for server-side errors.
func DefaultMessage(code ErrorCode) string {
	switch code {
	case ErrorCodeInvalidInput:
		return "Invalid input"
	case ErrorCodeMissingRequired:
		return "Missing required field"
	case ErrorCodeInvalidFormat:
		return "Invalid format"
	case ErrorCodeValidationFailed:
		return "Validation failed"
	case ErrorCodeServiceUnavailable:
		return "Service temporarily unavailable"
	case ErrorCodeTimeout:
		return "Request timeout"
	case ErrorCodeInternalError:
		return "Internal server error"
	case ErrorCodeAIProviderUnavailable, ErrorCodeAIRequestFailed:
		return "The assistant is unavailable right now, please try again shortly"
	case ErrorCodeAIResponseInvalid:
		return "The assistant returned an unreadable answer"
	case ErrorCodeAIConfigInvalid:
		return "The assistant is not configured"
	case ErrorCodeSearchFailed:
		return "Web search failed"
	case ErrorCodeFetchFailed:
		return "Page fetch failed"
	case ErrorCodeRequestTooLarge:
		return "Request body too large"
	default:
		return "An error occurred"
	}
}

// ParseLocale maps a locale string ("fr-FR", "en", "aeb", "ar-TN") to a Locale.
// Unknown values resolve to the dialect.
func ParseLocale(localeStr string) Locale {
	parts := strings.Split(strings.TrimSpace(localeStr), "-")
	switch Locale(strings.ToLower(parts[0])) {
	case LocaleEnglish:
		return LocaleEnglish
	case LocaleFrench:
		return LocaleFrench
	case LocaleFormal:
		return LocaleFormal
	default:
		return LocaleDialect
	}
}

const (
	softFailureDialect = "سامحني، صار مشكل وما نجمتش نجاوبك توة. عاود جرّب بعد شوية."
	softFailureFormal  = "عذرًا، حدث خطأ ولم أتمكن من الإجابة الآن. يرجى المحاولة مرة أخرى بعد قليل."
	softFailureEnglish = "Sorry, something went wrong and I couldn't answer right now. Please try again in a moment."
	softFailureFrench  = "Désolé, un problème est survenu et je n'ai pas pu répondre. Réessayez dans un instant."
)

var globalLocalizedMessages = NewLocalizedMessages()

func init() {
	for _, code := range []ErrorCode{
		ErrorCodeAIRequestFailed,
		ErrorCodeAIProviderUnavailable,
		ErrorCodeServiceUnavailable,
		ErrorCodeTimeout,
		ErrorCodeInternalError,
	} {
		globalLocalizedMessages.AddMessage(code, LocaleDialect, softFailureDialect)
		globalLocalizedMessages.AddMessage(code, LocaleFormal, softFailureFormal)
		globalLocalizedMessages.AddMessage(code, LocaleEnglish, softFailureEnglish)
		globalLocalizedMessages.AddMessage(code, LocaleFrench, softFailureFrench)
	}

	globalLocalizedMessages.AddMessage(ErrorCodeInvalidInput, LocaleDialect, "الطلب موش صحيح")
	globalLocalizedMessages.AddMessage(ErrorCodeInvalidInput, LocaleEnglish, "Invalid input")
	globalLocalizedMessages.AddMessage(ErrorCodeInvalidInput, LocaleFrench, "Entrée invalide")

	globalLocalizedMessages.AddMessage(ErrorCodeMissingRequired, LocaleDialect, "لازم تكتب رسالة")
	globalLocalizedMessages.AddMessage(ErrorCodeMissingRequired, LocaleEnglish, "A message is required")
	globalLocalizedMessages.AddMessage(ErrorCodeMissingRequired, LocaleFrench, "Un message est requis")

	globalLocalizedMessages.AddMessage(ErrorCodeValidationFailed, LocaleDialect, "فما معلومات موش صحيحة في الطلب")
	globalLocalizedMessages.AddMessage(ErrorCodeValidationFailed, LocaleEnglish, "Validation failed")
	globalLocalizedMessages.AddMessage(ErrorCodeValidationFailed, LocaleFrench, "La validation a échoué")

	globalLocalizedMessages.AddMessage(ErrorCodeRequestTooLarge, LocaleDialect, "الطلب كبير برشا")
	globalLocalizedMessages.AddMessage(ErrorCodeRequestTooLarge, LocaleEnglish, "Request body too large")
	globalLocalizedMessages.AddMessage(ErrorCodeRequestTooLarge, LocaleFrench, "Requête trop volumineuse")
}

// GetLocalizedMessage returns a localized message using the global instance
func GetLocalizedMessage(code ErrorCode, locale Locale) string {
	return globalLocalizedMessages.GetMessage(code, locale)
}

// SoftFailureMessage returns the polite failure reply shown when the primary
// generation call fails. It never mentions the upstream provider.
func SoftFailureMessage(locale Locale) string {
	return globalLocalizedMessages.GetMessage(ErrorCodeAIRequestFailed, locale)
}

