// Package serviceinterfaces defines the outbound boundaries of the chat
// pipeline so services can be wired and tested against fakes.
package serviceinterfaces

import (
	"context"

	"derjachat/internal/models"
)

// Generator is the generation boundary: one request, one text response
type Generator interface {
	// Generate sends the ordered segments and returns the reply text. An
	// unreadable response envelope yields "" and a nil error.
	Generate(ctx context.Context, req *models.GenerationRequest) (string, error)

	// Name identifies the provider kind in logs and spans
	Name() string
}
