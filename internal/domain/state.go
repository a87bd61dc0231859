package domain

import "fmt"

// OperationalState is the single process-wide flag gating balance mutations.
type OperationalState uint8

const (
	StateInactive OperationalState = iota
	StateActive
	StatePaused
)

// String returns the canonical name of the state.
func (s OperationalState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateActive:
		return "Active"
	case StatePaused:
		return "Paused"
	default:
		return fmt.Sprintf("OperationalState(%d)", uint8(s))
	}
}

// IsValid reports whether s is one of the three defined states.
func (s OperationalState) IsValid() bool {
	switch s {
	case StateInactive, StateActive, StatePaused:
		return true
	default:
		return false
	}
}

// ParseOperationalState accepts the canonical names case-insensitively.
func ParseOperationalState(raw string) (OperationalState, error) {
	switch normalizeState(raw) {
	case "inactive":
		return StateInactive, nil
	case "active":
		return StateActive, nil
	case "paused":
		return StatePaused, nil
	default:
		return StateInactive, fmt.Errorf("unknown operational state %q", raw)
	}
}

// MarshalText implements encoding.TextMarshaler (JSON and YAML use it).
func (s OperationalState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid operational state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OperationalState) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationalState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func normalizeState(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == ' ' || c == '\t' || c == '\n' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
