// Package dialect keeps generated text in Tunisian Derja written in Arabic
// script. It holds the lexical rule table, the matching engine that applies
// it, and the drift detector that decides when a reply needs a rewrite.
package dialect

import "strings"

// Rule maps one or more source variants to a single canonical Derja term.
// When Disambiguator is set it chooses the replacement from the surrounding
// words and Target is only its default.
type Rule struct {
	Name          string
	Patterns      []string
	Target        string
	Disambiguator Disambiguator
}

// Targets lists every replacement the rule can produce
func (r Rule) Targets() []string {
	if r.Disambiguator == nil {
		return []string{r.Target}
	}
	return append([]string{r.Target}, r.Disambiguator.Targets()...)
}

// Disambiguator picks a replacement from the words before and after a match
type Disambiguator interface {
	Resolve(before, after []string) string
	Targets() []string
}

// FinanceContext picks Finance when a finance word sits within Window words
// of the match and Default otherwise.
type FinanceContext struct {
	Finance    string
	Default    string
	Window     int
	Vocabulary []string
}

// Resolve implements Disambiguator
func (f FinanceContext) Resolve(before, after []string) string {
	window := f.Window
	if window <= 0 {
		window = 4
	}
	if len(before) > window {
		before = before[len(before)-window:]
	}
	if len(after) > window {
		after = after[:window]
	}
	for _, w := range append(append([]string{}, before...), after...) {
		if f.isFinanceWord(w) {
			return f.Finance
		}
	}
	return f.Default
}

// Targets implements Disambiguator
func (f FinanceContext) Targets() []string {
	return []string{f.Finance, f.Default}
}

var attachedPrefixes = []string{"", "ال", "و", "ب", "ل", "وال", "بال", "لل", "فال"}

func (f FinanceContext) isFinanceWord(word string) bool {
	word = strings.ToLower(word)
	for _, v := range f.Vocabulary {
		for _, p := range attachedPrefixes {
			if word == p+v {
				return true
			}
		}
	}
	return false
}

// financeVocabulary marks a payment context
var financeVocabulary = []string{
	"فلوس", "دينار", "دنانير", "مليم", "ملاليم", "ثمن", "سعر", "سوم", "فاتورة", "فاتورات",
	"كرا", "حساب", "بنك", "بانكة", "كريدي", "قرض", "خلاص", "مصروف", "ضريبة", "شهرية",
	"دين", "ميزانية", "أداء", "معلوم", "تذكرة", "dinar", "dinars", "dt", "tnd", "euro", "euros",
}

// DefaultRules is the built-in Derja rule table. Order only breaks ties
// between patterns of equal length.
var DefaultRules = []Rule{
	{Name: "what", Patterns: []string{"ماذا", "شو", "ايش", "إيش"}, Target: "شنوة"},
	{Name: "why", Patterns: []string{"لماذا", "ليش", "ليه"}, Target: "علاش"},
	{Name: "how", Patterns: []string{"كيف"}, Target: "كيفاش"},
	{Name: "now", Patterns: []string{"الآن", "الان", "هلأ", "هلق", "دلوقتي"}, Target: "توة"},
	{Name: "very", Patterns: []string{"جداً", "جدا", "كتير", "كثيرا", "كثيراً"}, Target: "برشا"},
	{Name: "want", Patterns: []string{"أريد", "اريد", "بدي", "عايز", "عاوز"}, Target: "نحب"},
	{Name: "dont-know", Patterns: []string{"لا أعرف", "لا اعرف", "ما بعرف", "مش عارف", "ما بعرفش"}, Target: "ما نعرفش"},
	{Name: "no-longer", Patterns: []string{"لم يعد", "لم تعد", "ما عاد", "ما عادش"}, Target: "ماعادش"},
	{Name: "like-this", Patterns: []string{"هكذا", "هيك", "كده", "كدا"}, Target: "هكا"},
	{Name: "also", Patterns: []string{"أيضا", "أيضاً", "ايضا", "كمان"}, Target: "زادة"},
	{Name: "there-is", Patterns: []string{"يوجد", "توجد", "هناك"}, Target: "فما"},
	{Name: "there-is-not", Patterns: []string{"لا يوجد", "لا توجد", "ليس هناك", "مافيش", "ما فيش"}, Target: "ما فماش"},
	{Name: "not", Patterns: []string{"ليس", "ليست", "مش", "مو"}, Target: "موش"},
	{Name: "good", Patterns: []string{"جيد", "جيدة", "منيح", "كويس", "كويسة"}, Target: "باهي"},
	{Name: "thanks", Patterns: []string{"شكرا", "شكراً", "شكرًا"}, Target: "يعيشك"},
	{Name: "where", Patterns: []string{"أين", "اين", "فين"}, Target: "وين"},
	{Name: "when", Patterns: []string{"متى", "إمتى", "امتى"}, Target: "وقتاش"},
	{Name: "how-much", Patterns: []string{"كم", "قديش", "بكام"}, Target: "قداش"},
	{Name: "car", Patterns: []string{"سيارة", "عربية"}, Target: "كرهبة"},
	{Name: "a-little", Patterns: []string{"قليلا", "قليلاً", "شوي", "شويه"}, Target: "شوية"},
	{Name: "yes", Patterns: []string{"نعم", "أيوه", "ايوه", "أيوة"}, Target: "إيه"},
	{Name: "pay-or-push", Patterns: []string{"دفع", "ادفع", "إدفع"}, Target: "دز",
		Disambiguator: FinanceContext{Finance: "خلّص", Default: "دز", Window: 4, Vocabulary: financeVocabulary}},
}
