package services

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// IntentClassifier decides, from keyword tests only, what a message needs:
// an explicit reply language, live web grounding, a default locale, an export.
// Every method is total and safe for concurrent use.
type IntentClassifier struct {
	minMessageRunes int
	logger          *observability.Logger
}

// NewIntentClassifier creates a classifier
func NewIntentClassifier(cfg *config.SearchConfig, logger *observability.Logger) *IntentClassifier {
	minRunes := 8
	if cfg != nil && cfg.MinMessageRunes > 0 {
		minRunes = cfg.MinMessageRunes
	}
	return &IntentClassifier{minMessageRunes: minRunes, logger: logger}
}

// Classify runs every test on msg
func (c *IntentClassifier) Classify(ctx context.Context, msg string, tools models.ToolToggles) models.Intent {
	_, span := observability.TracePipelineFunction(ctx, "classify",
		attribute.Int("message.runes", utf8.RuneCountInString(msg)),
		attribute.Bool("tools.web_search", tools.WebSearch),
	)
	defer span.End()

	intent := models.Intent{
		Language:            c.DetectRequestedLanguage(msg),
		NeedsWebSearch:      c.NeedsWebSearch(msg, tools.WebSearch),
		IsLocationDependent: c.IsLocationDependent(msg),
		WantsExport:         c.DetectExport(msg),
	}

	span.SetAttributes(
		observability.AttributeLanguage(intent.Language.String()),
		attribute.Bool("intent.needs_web_search", intent.NeedsWebSearch),
		attribute.Bool("intent.location_dependent", intent.IsLocationDependent),
		attribute.Bool("intent.export", intent.WantsExport),
	)
	if c.logger != nil {
		c.logger.Debug(ctx, "Classified message", map[string]interface{}{
			"language":           intent.Language.String(),
			"needs_web_search":   intent.NeedsWebSearch,
			"location_dependent": intent.IsLocationDependent,
			"export":             intent.WantsExport,
		})
	}
	return intent
}

type languagePhrases struct {
	lang   models.RequestedLanguage
	latin  *regexp.Regexp
	arabic []string
}

var languageOverrides = []languagePhrases{
	{
		lang:   models.LanguageEnglish,
		latin:  regexp.MustCompile(`(?i)\b(?:(?:answer|reply|respond|write|speak|talk)\s+(?:to\s+me\s+|me\s+)?in\s+english|in\s+english\s+please|english\s+please)\b`),
		arabic: []string{"بالانجليزية", "بالإنجليزية", "بالانقليزية", "بالإنقليزية", "بالانجليزي", "بالإنجليزي", "بالانقليزي", "بالإنقليزي", "بالأنجليزية"},
	},
	{
		lang:   models.LanguageFrench,
		latin:  regexp.MustCompile(`(?i)(?:\ben\s+fran[cç]ais\b|\b(?:answer|reply|respond|write|speak)\s+(?:to\s+me\s+|me\s+)?in\s+french\b|\bin\s+french\s+please\b)`),
		arabic: []string{"بالفرنسية", "بالفرنساوي", "بالفرنسي", "بالفرنساوية"},
	},
	{
		lang:   models.LanguageFormal,
		latin:  regexp.MustCompile(`(?i)\b(?:in\s+(?:msa|standard\s+arabic|formal\s+arabic|fusha)|formal\s+arabic\s+please)\b`),
		arabic: []string{"بالفصحى", "بالعربية الفصحى", "بالعربي الفصيح", "باللغة العربية الفصحى"},
	},
	{
		lang:   models.LanguageDialect,
		latin:  regexp.MustCompile(`(?i)\b(?:in\s+(?:tunisian|derja|darija)|en\s+tunisien)\b`),
		arabic: []string{"بالتونسي", "بالدارجة", "بالتونسية", "باللهجة التونسية"},
	},
}

// DetectRequestedLanguage finds an explicit "answer in X" request. When the
// message names several languages the earliest phrase wins.
func (c *IntentClassifier) DetectRequestedLanguage(raw string) models.RequestedLanguage {
	if strings.TrimSpace(raw) == "" {
		return models.LanguageNone
	}

	lower := strings.ToLower(raw)
	best, bestIdx := models.LanguageNone, -1
	consider := func(lang models.RequestedLanguage, idx int) {
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = lang, idx
		}
	}

	for _, lp := range languageOverrides {
		if loc := lp.latin.FindStringIndex(lower); loc != nil {
			consider(lp.lang, loc[0])
		}
		for _, phrase := range lp.arabic {
			consider(lp.lang, strings.Index(raw, phrase))
		}
	}
	return best
}

var (
	questionWords = wordSet(
		"شنوة", "شنو", "اشنوة", "شكون", "وقتاش", "وين", "علاش", "كيفاش", "قداش", "آش", "اش", "فاش",
		"ماذا", "متى", "أين", "كيف", "لماذا", "كم", "هل",
		"what", "who", "when", "where", "why", "how", "which", "whats", "what's",
		"quoi", "qui", "quand", "où", "pourquoi", "comment", "combien", "quel", "quelle", "quels", "quelles",
	)
	recencyWords = wordSet(
		"اليوم", "توة", "الآن", "الان", "البارح", "غدوة", "غدا", "الليلة", "هالجمعة", "هالأسبوع", "هالشهر",
		"آخر", "أخر", "جديد", "الجديد", "حاليا", "مؤخرا",
		"today", "tonight", "now", "current", "currently", "latest", "recent", "recently", "yesterday", "tomorrow",
		"aujourd'hui", "maintenant", "actuel", "actuelle", "dernier", "dernière", "récent", "hier", "demain",
	)
	topicWords = wordSet(
		"طقس", "الجو", "سخانة", "مطر", "أخبار", "اخبار", "خبر", "سعر", "أسعار", "اسعار", "بقداش", "الدولار", "الأورو",
		"البورصة", "ماتش", "مباراة", "نتيجة", "انتخابات", "حدث", "مهرجان", "كأس",
		"weather", "news", "price", "prices", "score", "match", "election", "elections", "stock", "event", "festival",
		"météo", "meteo", "actualité", "actualités", "prix", "élection", "résultat",
	)
	weatherWords = wordSet(
		"طقس", "جو", "الجو", "سخانة", "حرارة", "برد", "مطر", "أمطار", "امطار", "ريح", "رياح", "ثلج", "شمس", "غيم",
		"weather", "temperature", "rain", "forecast", "snow", "wind", "sunny", "humidity",
		"météo", "meteo", "température", "pluie", "neige", "vent",
	)
	placeWords = wordSet(
		"تونس", "صفاقس", "سوسة", "بنزرت", "نابل", "القيروان", "قابس", "المنستير", "منستير", "المهدية", "جربة",
		"توزر", "قفصة", "الحمامات", "حمامات", "باجة", "جندوبة", "الكاف", "سليانة", "زغوان", "أريانة", "اريانة",
		"مدنين", "تطاوين", "قبلي", "سيدي", "القصرين", "باريس", "فرنسا", "الجزائر", "ليبيا", "مصر", "المغرب",
		"لندن", "روما", "ألمانيا", "إيطاليا",
		"tunis", "tunisia", "sfax", "sousse", "bizerte", "nabeul", "djerba", "monastir", "hammamet", "kairouan",
		"paris", "london", "rome", "france", "algeria", "algiers", "cairo", "marseille", "lyon", "montreal",
	)
	locativeWords = wordSet("في", "فى", "à", "in", "at", "au", "en", "عند", "بمدينة", "بولاية", "ولاية", "مدينة")
	exportWords   = wordSet("pdf", "export", "exporter", "تصدير", "صدّر", "صدر", "صدّرلي", "صدرلي", "نصدّر", "نصدر")

	yearPattern = regexp.MustCompile(`\b20[0-9]{2}\b`)
)

// NeedsWebSearch is true when search is enabled, the message is long enough
// and it asks a question, mentions recency or names an external topic.
func (c *IntentClassifier) NeedsWebSearch(msg string, enabled bool) bool {
	if !enabled {
		return false
	}
	trimmed := strings.TrimSpace(msg)
	if utf8.RuneCountInString(trimmed) < c.minMessageRunes {
		return false
	}

	if strings.ContainsAny(trimmed, "?؟") || yearPattern.MatchString(trimmed) {
		return true
	}
	toks := tokens(trimmed)
	return toks.any(questionWords) || toks.any(recencyWords) || toks.any(topicWords)
}

// IsLocationDependent is true for weather questions that name no place and
// use no locative preposition.
func (c *IntentClassifier) IsLocationDependent(msg string) bool {
	if strings.TrimSpace(msg) == "" {
		return false
	}
	toks := tokens(msg)
	if !toks.any(weatherWords) {
		return false
	}
	return !toks.any(placeWords) && !toks.any(locativeWords)
}

// DetectExport is true when the message asks for the answer as a document
func (c *IntentClassifier) DetectExport(msg string) bool {
	if strings.TrimSpace(msg) == "" {
		return false
	}
	return tokens(msg).any(exportWords)
}

type set map[string]bool

func wordSet(words ...string) set {
	s := make(set, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = true
	}
	return s
}

// tokenSet holds each word of a message plus its form without attached
// Arabic prefixes (و، ف، ب، ال، لل), so "بتونس" also yields "تونس".
type tokenSet []string

var arabicPrefixes = []string{"وال", "بال", "فال", "لل", "ال", "و", "ف", "ب"}

func tokens(msg string) tokenSet {
	words := strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r) && r != '\''
	})

	out := make(tokenSet, 0, len(words)*2)
	for _, w := range words {
		out = append(out, w)
		for _, p := range arabicPrefixes {
			if stripped := strings.TrimPrefix(w, p); stripped != w && utf8.RuneCountInString(stripped) >= 2 {
				out = append(out, stripped)
			}
		}
	}
	return out
}

func (t tokenSet) any(words set) bool {
	for _, tok := range t {
		if words[tok] {
			return true
		}
	}
	return false
}
