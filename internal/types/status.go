package types

import "fmt"

// ScanStatus is the scheduler's state. Exactly one value is current per session.
type ScanStatus int

const (
	Idle ScanStatus = iota
	Loading
	Searching
	Aligning
	Perfect
)

var statusNames = [...]string{
	Idle:      "idle",
	Loading:   "loading",
	Searching: "searching",
	Aligning:  "aligning",
	Perfect:   "perfect",
}

var instructions = [...]string{
	Idle:      "",
	Loading:   "Loading model...",
	Searching: "Place eye in box",
	Aligning:  "Hold still...",
	Perfect:   "Perfect!",
}

func (s ScanStatus) String() string {
	if s < Idle || s > Perfect {
		return fmt.Sprintf("ScanStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Instruction is the short label shown to the user for this status.
func (s ScanStatus) Instruction() string {
	if s < Idle || s > Perfect {
		return ""
	}
	return instructions[s]
}

// MarshalText encodes the status by name.
func (s ScanStatus) MarshalText() ([]byte, error) {
	if s < Idle || s > Perfect {
		return nil, fmt.Errorf("unknown scan status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a status name.
func (s *ScanStatus) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = ScanStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown scan status %q", text)
}

// CanTransition reports whether moving from s to next is a legal edge of the scan state machine.
// Stopping a session (any -> Idle) is always legal.
func (s ScanStatus) CanTransition(next ScanStatus) bool {
	if next == Idle {
		return true
	}
	switch s {
	case Idle:
		return next == Loading
	case Loading:
		return next == Searching
	case Searching, Aligning, Perfect:
		return next == Searching || next == Aligning || next == Perfect
	}
	return false
}
