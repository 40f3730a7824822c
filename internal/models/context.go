package models

import "strings"

// Context block labels
const (
	LabelWebSearch = "[نتائج البحث]"
	LabelPage      = "[محتوى الصفحة]"
	LabelDocument  = "[نص الوثيقة]"
)

// ContextBundle is the grounding gathered for one request. Every field is optional.
type ContextBundle struct {
	WebSnippet      string `json:"webSnippet,omitempty"`
	FetchedPageText string `json:"fetchedPageText,omitempty"`
	FetchedPageURL  string `json:"fetchedPageUrl,omitempty"`
	DocumentText    string `json:"documentText,omitempty"`
}

// IsEmpty reports whether the bundle carries no grounding at all
func (b ContextBundle) IsEmpty() bool {
	return b.WebSnippet == "" && b.FetchedPageText == "" && b.DocumentText == ""
}

// Size is the combined rune count of every grounding text
func (b ContextBundle) Size() int {
	return len([]rune(b.WebSnippet)) + len([]rune(b.FetchedPageText)) + len([]rune(b.DocumentText))
}

// Block renders the labeled "additional context" text appended to the live turn.
// It returns "" for an empty bundle.
func (b ContextBundle) Block() string {
	if b.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	write := func(label, body string) {
		if body == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(label)
		sb.WriteString("\n")
		sb.WriteString(body)
	}

	write(LabelWebSearch, b.WebSnippet)
	page := b.FetchedPageText
	if page != "" && b.FetchedPageURL != "" {
		page = b.FetchedPageURL + "\n" + page
	}
	write(LabelPage, page)
	write(LabelDocument, b.DocumentText)

	return sb.String()
}

// GroundingText returns the source text a quiz is built from: the document
// when present, otherwise the page, otherwise the web snippet.
func (b ContextBundle) GroundingText() string {
	switch {
	case b.DocumentText != "":
		return b.DocumentText
	case b.FetchedPageText != "":
		return b.FetchedPageText
	default:
		return b.WebSnippet
	}
}

// SearchHit is one search result
type SearchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchResult is the structured search boundary's answer
type SearchResult struct {
	Abstract string      `json:"abstract,omitempty"`
	Source   string      `json:"source,omitempty"`
	Results  []SearchHit `json:"results"`
}

// FetchedPage is the page-fetch boundary's answer
type FetchedPage struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	BodyText    string `json:"bodyText"`
}

// IsMarkup reports whether the page body is HTML or XHTML
func (p *FetchedPage) IsMarkup() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}
