package group

// Targets implements the dispatch decision table: it selects which roster
// members a group command is forwarded to.
//
//	turn_on         -> main members (with or without attributes)
//	turn_off        -> all members, regardless of role or power state
//	set_attributes  -> members currently reporting on, either role
//
// The table is state-independent for turn_on and turn_off; only
// set_attributes consults the current snapshots. CommandToggle must be
// resolved to turn_on or turn_off before planning.
func Targets(cmd Command, roster *Roster) []MemberRef {
	switch cmd.Type {
	case CommandTurnOn:
		// Auxiliary lights must never switch on automatically.
		return roster.Members(RoleMain)

	case CommandTurnOff:
		return roster.Members()

	case CommandSetAttributes:
		// Adjustments apply only to what is already lit; off members are
		// not woken. The target set may legitimately be empty.
		var targets []MemberRef
		for _, m := range roster.Members() {
			if snap, ok := roster.SnapshotOf(m.DeviceID); ok && snap.On {
				targets = append(targets, m)
			}
		}
		return targets
	}

	return nil
}
