package tools

import (
	"sort"
	"time"
)

// DefaultConfirmTimeout bounds how long Run waits for a confirmation.
const DefaultConfirmTimeout = 30 * time.Second

// Grant is the immutable capability grant of the current actor. To change
// it, build a new Grant and pass it to Engine.SetGrant.
type Grant struct {
	caps           map[Capability]bool
	autoApprove    map[string]bool
	confirmTimeout time.Duration
}

// NewGrant builds a grant. A non-positive timeout means DefaultConfirmTimeout.
func NewGrant(caps []Capability, autoApprove []string, confirmTimeout time.Duration) *Grant {
	g := &Grant{
		caps:           make(map[Capability]bool, len(caps)),
		autoApprove:    make(map[string]bool, len(autoApprove)),
		confirmTimeout: confirmTimeout,
	}
	for _, c := range caps {
		g.caps[c] = true
	}
	for _, name := range autoApprove {
		g.autoApprove[name] = true
	}
	if g.confirmTimeout <= 0 {
		g.confirmTimeout = DefaultConfirmTimeout
	}
	return g
}

// Has reports whether the grant holds c.
func (g *Grant) Has(c Capability) bool { return g.caps[c] }

// Capabilities returns the held capabilities, sorted.
func (g *Grant) Capabilities() []Capability {
	out := make([]Capability, 0, len(g.caps))
	for c := range g.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AutoApproves reports whether name skips confirmation.
func (g *Grant) AutoApproves(name string) bool { return g.autoApprove[name] }

// ConfirmTimeout is how long a confirmation may take.
func (g *Grant) ConfirmTimeout() time.Duration { return g.confirmTimeout }

// missing returns the capabilities of required that g lacks; none when g
// holds full_access.
func (g *Grant) missing(required []Capability) []Capability {
	if g.caps[CapFullAccess] {
		return nil
	}
	var out []Capability
	for _, c := range required {
		if !g.caps[c] {
			out = append(out, c)
		}
	}
	return out
}
