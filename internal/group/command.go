package group

import "errors"

// CommandType is the group-level command vocabulary. It mirrors the
// per-device command vocabulary: a group command is translated into the
// same command issued to a subset of members.
type CommandType int

const (
	CommandTurnOn CommandType = iota
	CommandTurnOff
	CommandSetAttributes
	CommandToggle
)

// String returns a human-readable name for the command type.
func (t CommandType) String() string {
	switch t {
	case CommandTurnOn:
		return "turn_on"
	case CommandTurnOff:
		return "turn_off"
	case CommandSetAttributes:
		return "set_attributes"
	case CommandToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// Attributes carries the optional light attributes of a command.
// nil fields are not part of the command.
type Attributes struct {
	Bri            *uint8    `json:"bri,omitempty"`
	Hue            *uint16   `json:"hue,omitempty"`
	Sat            *uint8    `json:"sat,omitempty"`
	Ct             *uint16   `json:"ct,omitempty"`
	Xy             []float32 `json:"xy,omitempty"`
	TransitionTime *uint16   `json:"transition_time,omitempty"` // in 100ms steps
}

// IsEmpty reports whether no attribute is set.
func (a *Attributes) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.Bri == nil && a.Hue == nil && a.Sat == nil && a.Ct == nil &&
		a.Xy == nil && a.TransitionTime == nil
}

// Command is one group-level command.
type Command struct {
	Type  CommandType `json:"type"`
	Attrs *Attributes `json:"attrs,omitempty"`
}

// Status classifies the outcome of one dispatched group command.
type Status int

const (
	StatusOK      Status = iota // every targeted member command succeeded (or target set was empty)
	StatusPartial               // some, but not all, targeted member commands failed
	StatusFailed                // every targeted member command failed
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MemberError records a failed per-member command within a dispatch.
type MemberError struct {
	DeviceID string
	Err      error
}

// Outcome is the aggregated result of one group command. Member-level
// failures never abort sibling dispatches; they are collected here.
type Outcome struct {
	Status  Status
	Targets []string      // device IDs the command was dispatched to, roster order
	Failed  []MemberError // subset of Targets that failed
}

// ErrEmptyGroup is returned when roster construction drops every configured
// member. A group with zero resolvable members cannot be built.
var ErrEmptyGroup = errors.New("group has no resolvable members")

// ErrAllMembersFailed is returned by HandleCommand when every targeted
// member command failed downstream.
var ErrAllMembersFailed = errors.New("all targeted member commands failed")
