package engine

import "fmt"

// Phase names one stage of the generation loop that can be independently
// enabled or disabled. Today there is exactly one: Shrink.
type Phase int

const (
	// PhaseShrink runs the shrinker against every interesting example
	// found until each is fully minimized.
	PhaseShrink Phase = iota
)

func (p Phase) String() string {
	switch p {
	case PhaseShrink:
		return "shrink"
	default:
		return "unknown"
	}
}

// AllPhases returns every known phase, for callers that want the default
// "run everything" configuration.
func AllPhases() []Phase {
	return []Phase{PhaseShrink}
}

// ParsePhase parses a phase name as accepted by AllPhases' String form.
func ParsePhase(s string) (Phase, error) {
	if s == PhaseShrink.String() {
		return PhaseShrink, nil
	}
	return 0, fmt.Errorf("conjecture: unknown phase %q", s)
}
