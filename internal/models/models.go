// Package models holds the request, context and quiz types shared by the chat
// pipeline, its HTTP handlers and the admin CLI.
package models

import (
	"strings"
	"time"
)

// Sender identifies who produced a conversation turn
type Sender string

const (
	// SenderUser is a turn typed by the person chatting
	SenderUser Sender = "user"
	// SenderAssistant is a previous reply of the assistant
	SenderAssistant Sender = "assistant"
)

// Turn is one immutable entry of the conversation history
type Turn struct {
	Sender    Sender    `json:"sender" binding:"required,oneof=user assistant"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RecentTurns returns the last limit turns in their original order.
// A non-positive limit returns nil.
func RecentTurns(history []Turn, limit int) []Turn {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// RequestedLanguage is the reply language asked for explicitly in a message
type RequestedLanguage string

const (
	// LanguageNone means no explicit request; the dialect applies
	LanguageNone RequestedLanguage = ""
	// LanguageDialect is an explicit request for Tunisian Derja
	LanguageDialect RequestedLanguage = "dialect"
	// LanguageEnglish is an explicit request for English
	LanguageEnglish RequestedLanguage = "english"
	// LanguageFrench is an explicit request for French
	LanguageFrench RequestedLanguage = "french"
	// LanguageFormal is an explicit request for Modern Standard Arabic
	LanguageFormal RequestedLanguage = "formal"
)

// Resolved maps "none" to the dialect
func (l RequestedLanguage) Resolved() RequestedLanguage {
	if l == LanguageNone {
		return LanguageDialect
	}
	return l
}

// IsDialect reports whether replies in this language go through dialect enforcement
func (l RequestedLanguage) IsDialect() bool {
	return l.Resolved() == LanguageDialect
}

// String returns a printable name, "none" for the empty value
func (l RequestedLanguage) String() string {
	if l == LanguageNone {
		return "none"
	}
	return string(l)
}

// ParseRequestedLanguage maps a free-form name ("en", "French", "msa") to a language.
// Unknown names map to LanguageNone.
func ParseRequestedLanguage(s string) RequestedLanguage {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dialect", "derja", "aeb", "tunisian":
		return LanguageDialect
	case "english", "en":
		return LanguageEnglish
	case "french", "fr", "francais", "français":
		return LanguageFrench
	case "formal", "msa", "ar", "fusha":
		return LanguageFormal
	default:
		return LanguageNone
	}
}

// Intent is the classifier's verdict on one inbound message
type Intent struct {
	Language            RequestedLanguage `json:"language"`
	NeedsWebSearch      bool              `json:"needsWebSearch"`
	IsLocationDependent bool              `json:"isLocationDependent"`
	WantsExport         bool              `json:"wantsExport"`
}

// ToolToggles are the tools the caller enabled for a chat turn
type ToolToggles struct {
	WebSearch bool
	URLFetch  bool
}
