// Package group implements role-aware virtual light groups. A group is an
// ordered roster of member lights, each tagged as main or auxiliary. The
// group's reported state is derived from the members' last observed
// snapshots, and group commands fan out to a role- and power-aware subset
// of the members: turn-on wakes only main lights, turn-off extinguishes
// everything, attribute changes touch only what is already lit.
package group

// Role tags a member as a main or auxiliary light.
type Role int

const (
	RoleMain Role = iota
	RoleAuxiliary
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// MemberRef identifies one member light and its role within a group.
// Refs are created from configuration and never mutated afterwards;
// changing a member's role means rebuilding the roster.
type MemberRef struct {
	DeviceID string
	Role     Role
}

// Snapshot is the last observed state of one member light. Attribute
// fields are pointers: nil means the device did not report that attribute.
type Snapshot struct {
	On        bool      `json:"on"`
	Reachable bool      `json:"reachable"`
	Bri       *uint8    `json:"bri,omitempty"` // brightness (1-254)
	Hue       *uint16   `json:"hue,omitempty"` // hue (0-65535)
	Sat       *uint8    `json:"sat,omitempty"` // saturation (0-254)
	Ct        *uint16   `json:"ct,omitempty"`  // color temperature in mirek (153-500)
	Xy        []float32 `json:"xy,omitempty"`  // CIE xy color coordinates
}

// State is the aggregate state the group reports to its host. It is a pure
// function of the current member snapshots and is recomputed, never patched,
// whenever a snapshot changes. Attribute fields are nil when no member is on.
type State struct {
	On        bool      `json:"on"`
	MainOn    bool      `json:"main_on"`
	Reachable bool      `json:"reachable"`
	Bri       *uint8    `json:"bri,omitempty"`
	Hue       *uint16   `json:"hue,omitempty"`
	Sat       *uint8    `json:"sat,omitempty"`
	Ct        *uint16   `json:"ct,omitempty"`
	Xy        []float32 `json:"xy,omitempty"`
}
