package channel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChannel is returned for any channel name the registry does
// not recognize. Writes and joins against such names must never reach
// the message store.
var ErrInvalidChannel = errors.New("invalid channel")

// DirectPrefix is the naming convention for per-user direct channels.
const DirectPrefix = "dm-"

// Info describes a single channel.
type Info struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // "public" or "direct"
	Description string `json:"description"`
}

// Registry is the static catalog of valid channel names. Public
// channels are a closed enumeration; direct channels are valid by
// naming convention. Construct one per server instance and pass it
// in; there is no package-level registry.
type Registry struct {
	public []Info
	index  map[string]Info
}

// NewRegistry returns a registry with the default public channels.
func NewRegistry() *Registry {
	return NewRegistryWith([]Info{
		{Name: "general", Kind: "public", Description: "General discussion"},
		{Name: "feedback", Kind: "public", Description: "Feedback and feature requests"},
	})
}

// NewRegistryWith returns a registry with the given public channels.
func NewRegistryWith(public []Info) *Registry {
	idx := make(map[string]Info, len(public))
	for _, info := range public {
		idx[info.Name] = info
	}
	return &Registry{public: public, index: idx}
}

// IsValid reports whether name is a known public channel or a
// well-formed direct channel.
func (r *Registry) IsValid(name string) bool {
	if _, ok := r.index[name]; ok {
		return true
	}
	return IsDirect(name)
}

// IsPublic reports whether name is one of the fixed public channels.
func (r *Registry) IsPublic(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Describe returns a human-readable description for a valid channel
// name, or an empty string for an unknown one.
func (r *Registry) Describe(name string) string {
	if info, ok := r.index[name]; ok {
		return info.Description
	}
	if IsDirect(name) {
		return fmt.Sprintf("Direct messages for %s", strings.TrimPrefix(name, DirectPrefix))
	}
	return ""
}

// List returns the public channel catalog in declaration order.
func (r *Registry) List() []Info {
	out := make([]Info, len(r.public))
	copy(out, r.public)
	return out
}

// Direct returns the direct channel name bound to a username.
func Direct(username string) string {
	return DirectPrefix + username
}

// IsDirect reports whether name follows the direct channel convention.
func IsDirect(name string) bool {
	return strings.HasPrefix(name, DirectPrefix) && len(name) > len(DirectPrefix)
}
