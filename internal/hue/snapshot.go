package hue

import (
	"github.com/amimof/huego"

	"github.com/dokzlo13/lightgroupd/internal/group"
)

// snapshotFromState converts a Hue light state into a member snapshot.
// Color attributes follow the light's color mode so the snapshot only
// carries values the light is actually rendering; brightness is reported
// whenever the light supports dimming (Hue reports 0 for plugs and other
// non-dimmable devices).
func snapshotFromState(s *huego.State) group.Snapshot {
	if s == nil {
		return group.Snapshot{}
	}

	snap := group.Snapshot{
		On:        s.On,
		Reachable: s.Reachable,
	}

	if s.Bri > 0 {
		bri := s.Bri
		snap.Bri = &bri
	}

	switch s.ColorMode {
	case "hs":
		hue := s.Hue
		sat := s.Sat
		snap.Hue = &hue
		snap.Sat = &sat
	case "xy":
		if len(s.Xy) == 2 {
			snap.Xy = []float32{s.Xy[0], s.Xy[1]}
		}
	case "ct":
		ct := s.Ct
		snap.Ct = &ct
	}

	return snap
}

// snapshotsEqual reports whether two snapshots describe the same observed
// state. Used by the poller to suppress no-change events.
func snapshotsEqual(a, b group.Snapshot) bool {
	if a.On != b.On || a.Reachable != b.Reachable {
		return false
	}
	if !uint8PtrEqual(a.Bri, b.Bri) || !uint8PtrEqual(a.Sat, b.Sat) {
		return false
	}
	if !uint16PtrEqual(a.Hue, b.Hue) || !uint16PtrEqual(a.Ct, b.Ct) {
		return false
	}
	if len(a.Xy) != len(b.Xy) {
		return false
	}
	for i := range a.Xy {
		if a.Xy[i] != b.Xy[i] {
			return false
		}
	}
	return true
}

func uint8PtrEqual(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uint16PtrEqual(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
