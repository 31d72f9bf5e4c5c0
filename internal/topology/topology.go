// Package topology resolves opaque device identities to human-readable
// names and their position in the provider hierarchy. The statistics engine
// never inspects topology; it only carries the identity through.
package topology

import "geomstat-agent/internal/devstat"

// Info describes where one device sits in the storage hierarchy.
type Info struct {
	// IsProvider is true for elements that expose storage; consumers are
	// tracked only so lookups can distinguish "known non-provider" from
	// "unknown".
	IsProvider bool
	Name       string
	// Rank is the provider's depth in the hierarchy; 1 means a physical
	// device, 0 means unknown.
	Rank uint32
}

// Resolver maps a device's opaque identity to its topology metadata.
type Resolver interface {
	Resolve(id devstat.DeviceID) (Info, bool)
}

// Static is a fixed identity table. It is the result type of the confxml
// parser and doubles as a handmade resolver for tests and synthetic sources.
type Static map[devstat.DeviceID]Info

func (s Static) Resolve(id devstat.DeviceID) (Info, bool) {
	info, ok := s[id]
	return info, ok
}
