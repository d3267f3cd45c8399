package group

import (
	"errors"
	"testing"
)

func TestNewRosterDropsUnresolved(t *testing.T) {
	registry := &fakeRegistry{devices: map[string]Snapshot{
		"A": {Reachable: true},
		"B": {Reachable: true},
	}}

	roster, err := NewRoster([]MemberRef{
		{DeviceID: "A", Role: RoleMain},
		{DeviceID: "B", Role: RoleMain},
		{DeviceID: "X", Role: RoleAuxiliary}, // not in registry
	}, registry)
	if err != nil {
		t.Fatalf("NewRoster() error = %v", err)
	}

	got := memberIDs(roster.Members())
	if !sameIDs(got, []string{"A", "B"}) {
		t.Errorf("Members() = %v, want [A B]", got)
	}
	if _, ok := roster.SnapshotOf("X"); ok {
		t.Error("SnapshotOf(X) should be absent for dropped member")
	}
}

func TestNewRosterEmptyGroup(t *testing.T) {
	registry := &fakeRegistry{devices: map[string]Snapshot{}}

	_, err := NewRoster([]MemberRef{{DeviceID: "Y", Role: RoleMain}}, registry)
	if !errors.Is(err, ErrEmptyGroup) {
		t.Errorf("NewRoster() error = %v, want ErrEmptyGroup", err)
	}
}

func TestNewRosterNoRefs(t *testing.T) {
	_, err := NewRoster(nil, &fakeRegistry{devices: map[string]Snapshot{}})
	if !errors.Is(err, ErrEmptyGroup) {
		t.Errorf("NewRoster() error = %v, want ErrEmptyGroup", err)
	}
}

func TestNewRosterDuplicateKeepsFirst(t *testing.T) {
	registry := &fakeRegistry{devices: map[string]Snapshot{"A": {}}}

	roster, err := NewRoster([]MemberRef{
		{DeviceID: "A", Role: RoleMain},
		{DeviceID: "A", Role: RoleAuxiliary},
	}, registry)
	if err != nil {
		t.Fatalf("NewRoster() error = %v", err)
	}

	members := roster.Members()
	if len(members) != 1 {
		t.Fatalf("len(Members()) = %d, want 1", len(members))
	}
	if members[0].Role != RoleMain {
		t.Errorf("duplicate member role = %v, want RoleMain (first occurrence)", members[0].Role)
	}
}

func TestRosterSeedsSnapshotsFromRegistry(t *testing.T) {
	roster := mustRoster(t,
		[]MemberRef{{DeviceID: "A", Role: RoleMain}},
		map[string]Snapshot{"A": {On: true, Reachable: true, Bri: uint8Ptr(120)}},
	)

	snap, ok := roster.SnapshotOf("A")
	if !ok {
		t.Fatal("SnapshotOf(A) absent")
	}
	if !snap.On || !snap.Reachable || snap.Bri == nil || *snap.Bri != 120 {
		t.Errorf("seeded snapshot = %+v, want on/reachable/bri=120", snap)
	}
}

func TestRosterUpdate(t *testing.T) {
	roster := mustRoster(t,
		[]MemberRef{{DeviceID: "A", Role: RoleMain}},
		map[string]Snapshot{"A": {}},
	)

	before := roster.Version()
	if !roster.Update("A", Snapshot{On: true, Reachable: true}) {
		t.Fatal("Update(A) = false, want true")
	}
	if roster.Version() == before {
		t.Error("Version() unchanged after update")
	}

	snap, _ := roster.SnapshotOf("A")
	if !snap.On {
		t.Error("snapshot not overwritten by Update")
	}
}

func TestRosterUpdateStranger(t *testing.T) {
	roster := mustRoster(t,
		[]MemberRef{{DeviceID: "A", Role: RoleMain}},
		map[string]Snapshot{"A": {}},
	)

	before := roster.Version()
	if roster.Update("ghost", Snapshot{On: true}) {
		t.Error("Update(ghost) = true, want false")
	}
	if roster.Version() != before {
		t.Error("stray event must not bump the roster version")
	}
}

func TestRosterMembersByRole(t *testing.T) {
	roster := mustRoster(t,
		[]MemberRef{
			{DeviceID: "A", Role: RoleMain},
			{DeviceID: "C", Role: RoleAuxiliary},
			{DeviceID: "B", Role: RoleMain},
		},
		map[string]Snapshot{"A": {}, "B": {}, "C": {}},
	)

	tests := []struct {
		name  string
		roles []Role
		want  []string
	}{
		{name: "all", roles: nil, want: []string{"A", "C", "B"}},
		{name: "main", roles: []Role{RoleMain}, want: []string{"A", "B"}},
		{name: "auxiliary", roles: []Role{RoleAuxiliary}, want: []string{"C"}},
		{name: "both", roles: []Role{RoleMain, RoleAuxiliary}, want: []string{"A", "C", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := memberIDs(roster.Members(tt.roles...))
			if !sameIDs(got, tt.want) {
				t.Errorf("Members(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}

func TestRosterMembersReturnsCopy(t *testing.T) {
	roster := mustRoster(t,
		[]MemberRef{
			{DeviceID: "A", Role: RoleMain},
			{DeviceID: "B", Role: RoleMain},
		},
		map[string]Snapshot{"A": {}, "B": {}},
	)

	members := roster.Members()
	members[0].DeviceID = "mutated"

	if roster.Members()[0].DeviceID != "A" {
		t.Error("mutating the returned slice must not affect the roster")
	}
}
