package models

import (
	"strings"

	contextutils "derjachat/internal/utils"
)

// ChatRequest is the body of POST /v1/chat and POST /v1/quiz
type ChatRequest struct {
	Message          string      `json:"message"`
	History          []Turn      `json:"history,omitempty" binding:"omitempty,max=500,dive"`
	DocumentText     string      `json:"documentText,omitempty"`
	WebSearchEnabled bool        `json:"webSearchEnabled,omitempty"`
	URLFetchEnabled  bool        `json:"urlFetchEnabled,omitempty"`
	Image            *InlineData `json:"image,omitempty"`
	QuizMode         bool        `json:"quizMode,omitempty"`
	QuizParams       *QuizParams `json:"quizParams,omitempty"`
	// Locale selects the language of soft-error messages ("aeb", "en", "fr", "ar")
	Locale string `json:"locale,omitempty"`
}

// ChatResponse is the reply of the chat and quiz endpoints. Chat replies set
// Reply; quiz replies set IsQuiz and Quiz.
type ChatResponse struct {
	Reply             string     `json:"reply,omitempty"`
	IsPDFExport       bool       `json:"isPdfExport,omitempty"`
	PDFContent        string     `json:"pdfContent,omitempty"`
	IsQuiz            bool       `json:"isQuiz,omitempty"`
	Quiz              []QuizItem `json:"quiz,omitempty"`
	TimerMinutes      *int       `json:"timerMinutes,omitempty"`
	HintsEnabled      bool       `json:"hintsEnabled,omitempty"`
	ImmediateFeedback bool       `json:"immediateFeedback,omitempty"`
	Error             *SoftError `json:"error,omitempty"`
	Meta              *ChatMeta  `json:"meta,omitempty"`
}

// SoftError is attached to a well-formed reply when an upstream call failed
// or the request was rejected
type SoftError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError names one request field that failed validation
type FieldError struct {
	Field  string `json:"field"`
	Rule   string `json:"rule"`
	Detail string `json:"detail,omitempty"`
}

// ChatMeta reports how a reply was produced. It never names the upstream provider.
type ChatMeta struct {
	Language  string `json:"language"`
	Grounded  bool   `json:"grounded"`
	Degraded  bool   `json:"degraded"`
	Rewritten bool   `json:"rewritten,omitempty"`
}

// RequestMode is the mutually exclusive shape of one request. The variants are
// ChatMode, VisionMode and QuizMode.
type RequestMode interface {
	modeName() string
}

// ChatMode is a text turn with optional grounding tools and export intent
type ChatMode struct {
	WebSearch bool
	URLFetch  bool
	Export    bool
}

// VisionMode is a chat turn grounded in an attached image; web tools are off
type VisionMode struct {
	Image InlineData
}

// QuizMode asks for a quiz instead of a reply
type QuizMode struct {
	Params QuizParams
}

func (ChatMode) modeName() string   { return "chat" }
func (VisionMode) modeName() string { return "vision" }
func (QuizMode) modeName() string   { return "quiz" }

// ModeName returns "chat", "vision" or "quiz"
func ModeName(m RequestMode) string {
	if m == nil {
		return "unknown"
	}
	return m.modeName()
}

// ResolveMode turns the flag bag of a ChatRequest into one RequestMode variant.
// A missing message and the image+quiz combination are rejected.
func ResolveMode(req *ChatRequest, forceQuiz bool) (RequestMode, error) {
	if req == nil {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "request body is required")
	}

	message := strings.TrimSpace(req.Message)
	quiz := req.QuizMode || forceQuiz

	if quiz {
		if req.Image != nil {
			return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "an image cannot be combined with quiz mode")
		}
		params := QuizParams{}
		if req.QuizParams != nil {
			params = *req.QuizParams
		}
		if strings.TrimSpace(params.Subject) == "" {
			params.Subject = message
		}
		if strings.TrimSpace(params.Subject) == "" {
			return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "quiz subject or message is required")
		}
		return QuizMode{Params: params.Normalize()}, nil
	}

	if message == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "message is required")
	}

	if req.Image != nil {
		if len(req.Image.Data) == 0 || !strings.HasPrefix(req.Image.MIMEType, "image/") {
			return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "image must carry image data")
		}
		return VisionMode{Image: *req.Image}, nil
	}

	return ChatMode{
		WebSearch: req.WebSearchEnabled,
		URLFetch:  req.URLFetchEnabled,
	}, nil
}
