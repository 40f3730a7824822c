package models

import "encoding/base64"

// Role tags a segment of a generation request
type Role string

const (
	// RoleSystem carries directives
	RoleSystem Role = "system"
	// RoleUser carries user turns and the live message
	RoleUser Role = "user"
	// RoleModel carries previous assistant replies
	RoleModel Role = "model"
)

// InlineData is a binary payload attached to the final segment, such as an image
type InlineData struct {
	MIMEType string `json:"mimeType" binding:"required"`
	Data     []byte `json:"data" binding:"required"`
}

// DataURL renders the payload as a data: URL
func (d *InlineData) DataURL() string {
	return "data:" + d.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// Segment is one role-tagged piece of a generation request
type Segment struct {
	Role   Role        `json:"role"`
	Text   string      `json:"text"`
	Inline *InlineData `json:"inline,omitempty"`
}

// GenerationRequest is the ordered segment sequence sent to the generation service.
// Order is directive, history, current turn. Consecutive same-role segments are allowed.
type GenerationRequest struct {
	Segments        []Segment `json:"segments"`
	Temperature     float64   `json:"temperature"`
	MaxOutputTokens int       `json:"maxOutputTokens"`
	// Purpose names the call for logs and spans ("chat", "quiz", "rewrite")
	Purpose string `json:"purpose,omitempty"`
}

// Last returns the final segment, or nil for an empty request
func (r *GenerationRequest) Last() *Segment {
	if len(r.Segments) == 0 {
		return nil
	}
	return &r.Segments[len(r.Segments)-1]
}

// HasInline reports whether any segment carries a binary payload
func (r *GenerationRequest) HasInline() bool {
	for i := range r.Segments {
		if r.Segments[i].Inline != nil {
			return true
		}
	}
	return false
}
