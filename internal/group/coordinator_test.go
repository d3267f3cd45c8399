package group

import (
	"context"
	"errors"
	"testing"
)

func newTestCoordinator(t *testing.T, snaps map[string]Snapshot) (*Coordinator, *fakeCommander) {
	t.Helper()

	roster := standardRoster(t, snaps)
	commander := newFakeCommander()
	// High rate limit so tests never stall on the limiter.
	return NewWithConfig("test", roster, commander, PolicyFirstOn, 1000), commander
}

func TestHandleCommandTurnOnWithAttributes(t *testing.T) {
	// All members off: turn-on with brightness goes to main members only,
	// each commanded with the supplied attributes.
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})

	cmd := Command{Type: CommandTurnOn, Attrs: &Attributes{Bri: uint8Ptr(50)}}
	out, err := coord.HandleCommand(context.Background(), cmd)
	if err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if out.Status != StatusOK {
		t.Errorf("Status = %v, want StatusOK", out.Status)
	}
	if !sameIDs(out.Targets, []string{"A", "B"}) {
		t.Errorf("Targets = %v, want [A B]", out.Targets)
	}

	for _, id := range []string{"A", "B"} {
		sent := commander.sentTo(id)
		if len(sent) != 1 {
			t.Fatalf("member %s received %d commands, want 1", id, len(sent))
		}
		if sent[0].Type != CommandTurnOn || sent[0].Attrs == nil || sent[0].Attrs.Bri == nil || *sent[0].Attrs.Bri != 50 {
			t.Errorf("member %s received %+v, want turn_on bri=50", id, sent[0])
		}
	}
	if commander.sendCount("C") != 0 {
		t.Error("auxiliary member C received a turn_on command")
	}
}

func TestHandleCommandSetAttributesTargetsLitAux(t *testing.T) {
	// A(main off), B(main off), C(aux on bri=80). Setting
	// brightness before any event arrives dispatches to C only.
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true},
		"B": {Reachable: true},
		"C": {On: true, Reachable: true, Bri: uint8Ptr(80)},
	})

	cmd := Command{Type: CommandSetAttributes, Attrs: &Attributes{Bri: uint8Ptr(10)}}
	out, err := coord.HandleCommand(context.Background(), cmd)
	if err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if !sameIDs(out.Targets, []string{"C"}) {
		t.Errorf("Targets = %v, want [C]", out.Targets)
	}
	if commander.sendCount("A") != 0 || commander.sendCount("B") != 0 {
		t.Error("off members must not be woken by an attribute change")
	}
}

func TestHandleCommandEmptyTargetSetSucceeds(t *testing.T) {
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})

	cmd := Command{Type: CommandSetAttributes, Attrs: &Attributes{Bri: uint8Ptr(10)}}
	out, err := coord.HandleCommand(context.Background(), cmd)
	if err != nil {
		t.Fatalf("HandleCommand() error = %v, want nil for empty dispatch", err)
	}
	if out.Status != StatusOK || len(out.Targets) != 0 {
		t.Errorf("Outcome = %+v, want successful empty operation", out)
	}
	for _, id := range []string{"A", "B", "C"} {
		if commander.sendCount(id) != 0 {
			t.Errorf("member %s received a command from an empty dispatch", id)
		}
	}
}

func TestHandleCommandNoAttributesIsNoop(t *testing.T) {
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {On: true, Reachable: true}, "B": {}, "C": {},
	})

	out, err := coord.HandleCommand(context.Background(), Command{Type: CommandSetAttributes})
	if err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if out.Status != StatusOK || len(out.Targets) != 0 {
		t.Errorf("Outcome = %+v, want empty success for attribute-less set", out)
	}
	if commander.sendCount("A") != 0 {
		t.Error("attribute-less set_attributes must not dispatch")
	}
}

func TestHandleCommandPartialFailure(t *testing.T) {
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})
	commander.fails["B"] = errBoom

	out, err := coord.HandleCommand(context.Background(), Command{Type: CommandTurnOff})
	if err != nil {
		t.Fatalf("HandleCommand() error = %v, want nil for partial failure", err)
	}
	if out.Status != StatusPartial {
		t.Errorf("Status = %v, want StatusPartial", out.Status)
	}
	if len(out.Failed) != 1 || out.Failed[0].DeviceID != "B" {
		t.Errorf("Failed = %v, want exactly [B]", out.Failed)
	}
	// Siblings are never aborted by one failure.
	for _, id := range []string{"A", "C"} {
		if commander.sendCount(id) != 1 {
			t.Errorf("member %s received %d commands, want 1", id, commander.sendCount(id))
		}
	}
}

func TestHandleCommandTotalFailure(t *testing.T) {
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})
	for _, id := range []string{"A", "B", "C"} {
		commander.fails[id] = errBoom
	}

	out, err := coord.HandleCommand(context.Background(), Command{Type: CommandTurnOff})
	if !errors.Is(err, ErrAllMembersFailed) {
		t.Errorf("HandleCommand() error = %v, want ErrAllMembersFailed", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("Status = %v, want StatusFailed", out.Status)
	}
	if len(out.Failed) != 3 {
		t.Errorf("len(Failed) = %d, want 3", len(out.Failed))
	}
}

func TestHandleCommandTurnOffIdempotent(t *testing.T) {
	// Turn-off is stateless with respect to current power state: sending it
	// twice dispatches to the same full target set both times.
	coord, commander := newTestCoordinator(t, map[string]Snapshot{
		"A": {On: true, Reachable: true}, "B": {Reachable: true}, "C": {On: true, Reachable: true},
	})

	first, err := coord.HandleCommand(context.Background(), Command{Type: CommandTurnOff})
	if err != nil {
		t.Fatalf("first turn_off error = %v", err)
	}

	// Members report off before the second command.
	for _, id := range []string{"A", "B", "C"} {
		coord.Observe(id, Snapshot{Reachable: true})
	}

	second, err := coord.HandleCommand(context.Background(), Command{Type: CommandTurnOff})
	if err != nil {
		t.Fatalf("second turn_off error = %v", err)
	}

	if !sameIDs(first.Targets, second.Targets) {
		t.Errorf("target sets differ: %v vs %v", first.Targets, second.Targets)
	}
	for _, id := range []string{"A", "B", "C"} {
		if commander.sendCount(id) != 2 {
			t.Errorf("member %s received %d commands, want 2", id, commander.sendCount(id))
		}
	}
}

func TestHandleCommandToggle(t *testing.T) {
	tests := []struct {
		name     string
		snaps    map[string]Snapshot
		wantType CommandType
		wantIDs  []string
	}{
		{
			name: "main_on_toggles_off_everything",
			snaps: map[string]Snapshot{
				"A": {On: true, Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
			},
			wantType: CommandTurnOff,
			wantIDs:  []string{"A", "B", "C"},
		},
		{
			name: "aux_only_glow_still_toggles_on_mains",
			snaps: map[string]Snapshot{
				"A": {Reachable: true}, "B": {Reachable: true}, "C": {On: true, Reachable: true},
			},
			wantType: CommandTurnOn,
			wantIDs:  []string{"A", "B"},
		},
		{
			name: "all_off_toggles_on_mains",
			snaps: map[string]Snapshot{
				"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
			},
			wantType: CommandTurnOn,
			wantIDs:  []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, commander := newTestCoordinator(t, tt.snaps)

			out, err := coord.HandleCommand(context.Background(), Command{Type: CommandToggle})
			if err != nil {
				t.Fatalf("HandleCommand() error = %v", err)
			}
			if !sameIDs(out.Targets, tt.wantIDs) {
				t.Errorf("Targets = %v, want %v", out.Targets, tt.wantIDs)
			}
			for _, id := range tt.wantIDs {
				sent := commander.sentTo(id)
				if len(sent) != 1 || sent[0].Type != tt.wantType {
					t.Errorf("member %s received %v, want one %s", id, sent, tt.wantType)
				}
			}
		})
	}
}

func TestHandleCommandFractionalRateLimit(t *testing.T) {
	// A rate limit below one command per second must still allow a
	// dispatch: the limiter's burst may never truncate to zero.
	roster := mustRoster(t,
		[]MemberRef{{DeviceID: "A", Role: RoleMain}},
		map[string]Snapshot{"A": {Reachable: true}},
	)
	commander := newFakeCommander()
	coord := NewWithConfig("test", roster, commander, PolicyFirstOn, 0.5)

	out, err := coord.HandleCommand(context.Background(), Command{Type: CommandTurnOn})
	if err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if out.Status != StatusOK {
		t.Errorf("Status = %v, want StatusOK (failed: %v)", out.Status, out.Failed)
	}
	if commander.sendCount("A") != 1 {
		t.Errorf("member A received %d commands, want 1", commander.sendCount("A"))
	}
}

func TestDispatchDoesNotMutateState(t *testing.T) {
	// Write-then-observe: a successful turn_on does not change the reported
	// state until member events arrive.
	coord, _ := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})

	if _, err := coord.HandleCommand(context.Background(), Command{Type: CommandTurnOn}); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	if coord.CurrentState().On {
		t.Error("group reports on before any member state event arrived")
	}

	coord.Observe("A", Snapshot{On: true, Reachable: true})

	st := coord.CurrentState()
	if !st.On || !st.MainOn {
		t.Errorf("CurrentState() = %+v, want on after member event", st)
	}
}

func TestObserveUnknownDevice(t *testing.T) {
	coord, _ := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})

	before := coord.CurrentState()
	coord.Observe("ghost", Snapshot{On: true, Reachable: true})
	after := coord.CurrentState()

	if before.On != after.On || after.On {
		t.Error("stray event must not change group state")
	}
}

func TestCurrentStateRecomputesOnUpdate(t *testing.T) {
	coord, _ := newTestCoordinator(t, map[string]Snapshot{
		"A": {Reachable: true}, "B": {Reachable: true}, "C": {Reachable: true},
	})

	if coord.CurrentState().On {
		t.Fatal("group should start off")
	}

	coord.Observe("C", Snapshot{On: true, Reachable: true, Bri: uint8Ptr(80)})

	st := coord.CurrentState()
	if !st.On || st.Bri == nil || *st.Bri != 80 {
		t.Errorf("CurrentState() = %+v, want on with bri=80", st)
	}

	coord.Observe("C", Snapshot{Reachable: true})
	if coord.CurrentState().On {
		t.Error("group still reports on after the last lit member went off")
	}
}
