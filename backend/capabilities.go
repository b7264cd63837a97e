package backend

import "slices"

// Capability names an optional operation a backend supports.
type Capability string

const (
	// CapabilityScanDir marks an implementation of Scanner.
	CapabilityScanDir Capability = "scan_dir"
	// CapabilitySetInfo marks backends that persist SetInfo changes
	// instead of only validating the path.
	CapabilitySetInfo Capability = "set_info"
	// CapabilityAppend marks support for AccessModeAppend.
	CapabilityAppend Capability = "append"
	// CapabilityStreaming marks writers that do not buffer the whole file.
	CapabilityStreaming Capability = "streaming"
)

// Capabilities describes what a backend supports.
type Capabilities struct {
	Capabilities    []Capability `json:"capabilities"`
	ReadOnly        bool         `json:"read_only"`
	CaseInsensitive bool         `json:"case_insensitive"`
	MaxObjectSize   int64        `json:"max_object_size"`
}

// Contains checks if a capability is supported.
func (c *Capabilities) Contains(capability Capability) bool {
	return slices.Contains(c.Capabilities, capability)
}

// Without returns a copy lacking the given capabilities.
func (c *Capabilities) Without(capabilities ...Capability) *Capabilities {
	out := *c
	out.Capabilities = slices.DeleteFunc(slices.Clone(c.Capabilities), func(capability Capability) bool {
		return slices.Contains(capabilities, capability)
	})
	return &out
}
