package module

import "murmur/internal/services/activity/domain"

// Ports is the activity port set other modules and commands resolve through the registry
type Ports struct {
	Read      domain.ReadPort
	Write     domain.WritePort
	Rebuilder domain.Rebuilder
}
