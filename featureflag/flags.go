package featureflag

type Flag string

const (
	// Panics on zone invariant violations instead of logging them.
	FlagStrictZoneInvariants Flag = "STRICT_ZONE_INVARIANTS"

	// Verifies every zone link after each rezoning.
	FlagVerifyZoneLinks Flag = "VERIFY_ZONE_LINKS"
)
