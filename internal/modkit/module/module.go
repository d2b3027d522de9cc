// Package module defines the contract every mountable module satisfies
package module

import (
	phttp "murmur/internal/platform/net/http"
)

// Module mounts routes and exposes a port set for cross wiring
type Module interface {
	MountRoutes(r phttp.Router)
	// Ports returns the module's own port set type, or nil
	Ports() any
	Name() string
}
