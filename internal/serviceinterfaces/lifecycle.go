package serviceinterfaces

import (
	"context"
)

// Lifecycle defines the interface for services that hold resources until shutdown
type Lifecycle interface {
	// Shutdown is called when the service should cleanup
	Shutdown(ctx context.Context) error
}
