package perfaudit

import "fmt"

// State is a step of a run.
type State int

const (
	StateIdle State = iota
	StateSessionOpen
	StateNavigated
	StateConsentResolved
	StateAudited
	StateMetricsExtracted
	StateClosed
	StateClosedFailed
)

var stateNames = [...]string{
	StateIdle:             "Idle",
	StateSessionOpen:      "SessionOpen",
	StateNavigated:        "Navigated",
	StateConsentResolved:  "ConsentResolved",
	StateAudited:          "Audited",
	StateMetricsExtracted: "MetricsExtracted",
	StateClosed:           "Closed",
	StateClosedFailed:     "Closed(Failed)",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateClosedFailed
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("perfaudit: unknown state %q", b)
}
