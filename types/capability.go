package types

import "strings"

// Capabilities is a bitfield declaring which optional interfaces the
// ledger application supports.
type Capabilities uint8

const (
	// CapSimulation: dry-run instructions against committed state.
	CapSimulation Capabilities = 1 << iota
)

// Has returns true if all bits in cap are set.
func (c Capabilities) Has(cap Capabilities) bool {
	return c&cap == cap
}

func (c Capabilities) String() string {
	var caps []string
	if c.Has(CapSimulation) {
		caps = append(caps, "Simulation")
	}
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, "|")
}
