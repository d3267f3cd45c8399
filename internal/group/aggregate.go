package group

// Policy selects how attribute values are combined when several on-members
// disagree.
type Policy int

const (
	// PolicyFirstOn reports, per attribute, the value of the first
	// on-member in roster order that has it. Deterministic and never
	// produces a value no physical light actually shows.
	PolicyFirstOn Policy = iota
	// PolicyMean reports the mean across all on-members that have the
	// attribute (column-wise for xy).
	PolicyMean
)

// String returns a human-readable name for the policy.
func (p Policy) String() string {
	switch p {
	case PolicyFirstOn:
		return "first_on"
	case PolicyMean:
		return "mean"
	default:
		return "unknown"
	}
}

// Aggregate derives the group state from the roster's current snapshots.
// The group is on iff any member is on (main or auxiliary), reachable iff
// any member is reachable, and attributes are computed over on-members
// only: all nil when nothing is on.
func Aggregate(roster *Roster, policy Policy) State {
	var st State
	var onSnaps []Snapshot

	for _, m := range roster.Members() {
		snap, ok := roster.SnapshotOf(m.DeviceID)
		if !ok {
			continue
		}

		if snap.Reachable {
			st.Reachable = true
		}
		if snap.On {
			st.On = true
			if m.Role == RoleMain {
				st.MainOn = true
			}
			onSnaps = append(onSnaps, snap)
		}
	}

	if len(onSnaps) == 0 {
		return st
	}

	st.Bri = reduceUint8(onSnaps, policy, func(s Snapshot) *uint8 { return s.Bri })
	st.Sat = reduceUint8(onSnaps, policy, func(s Snapshot) *uint8 { return s.Sat })
	st.Hue = reduceUint16(onSnaps, policy, func(s Snapshot) *uint16 { return s.Hue })
	st.Ct = reduceUint16(onSnaps, policy, func(s Snapshot) *uint16 { return s.Ct })
	st.Xy = reduceXy(onSnaps, policy)

	return st
}

func reduceUint8(snaps []Snapshot, policy Policy, get func(Snapshot) *uint8) *uint8 {
	var values []uint8
	for _, s := range snaps {
		if v := get(s); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	if policy == PolicyMean {
		var sum int
		for _, v := range values {
			sum += int(v)
		}
		mean := uint8(sum / len(values))
		return &mean
	}

	first := values[0]
	return &first
}

func reduceUint16(snaps []Snapshot, policy Policy, get func(Snapshot) *uint16) *uint16 {
	var values []uint16
	for _, s := range snaps {
		if v := get(s); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	if policy == PolicyMean {
		var sum int
		for _, v := range values {
			sum += int(v)
		}
		mean := uint16(sum / len(values))
		return &mean
	}

	first := values[0]
	return &first
}

func reduceXy(snaps []Snapshot, policy Policy) []float32 {
	var values [][]float32
	for _, s := range snaps {
		if len(s.Xy) == 2 {
			values = append(values, s.Xy)
		}
	}
	if len(values) == 0 {
		return nil
	}

	if policy == PolicyMean {
		var x, y float32
		for _, v := range values {
			x += v[0]
			y += v[1]
		}
		n := float32(len(values))
		return []float32{x / n, y / n}
	}

	out := make([]float32, 2)
	copy(out, values[0])
	return out
}
