package classifier

// Tier is the sensitivity level assigned to a text or record.
type Tier string

const (
	TierPublic       Tier = "public"
	TierInternal     Tier = "internal"
	TierConfidential Tier = "confidential"
)

func (t Tier) rank() int {
	switch t {
	case TierPublic:
		return 0
	case TierInternal:
		return 1
	default:
		return 2
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t == TierPublic || t == TierInternal || t == TierConfidential
}

// AtLeast reports whether t is as sensitive as other or more.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

// ParseTier maps a stored string to a Tier. Empty means public; anything
// unrecognized is treated as confidential so unknown data is never exposed.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case "":
		return TierPublic
	case TierPublic, TierInternal, TierConfidential:
		return Tier(s)
	default:
		return TierConfidential
	}
}

// MaxTier returns the most sensitive of the given tiers (public when empty).
func MaxTier(tiers ...Tier) Tier {
	out := TierPublic
	for _, t := range tiers {
		if t.rank() > out.rank() {
			out = t
		}
	}
	return out
}
