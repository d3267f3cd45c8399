package group

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Helper to create a uint8 pointer
func uint8Ptr(v uint8) *uint8 {
	return &v
}

// Helper to create a uint16 pointer
func uint16Ptr(v uint16) *uint16 {
	return &v
}

// fakeDevice is a resolved device handle with a fixed initial snapshot.
type fakeDevice struct {
	id   string
	snap Snapshot
}

func (d *fakeDevice) ID() string         { return d.id }
func (d *fakeDevice) Snapshot() Snapshot { return d.snap }

// fakeRegistry resolves only the devices it was seeded with.
type fakeRegistry struct {
	devices map[string]Snapshot
}

func (r *fakeRegistry) Resolve(deviceID string) (Device, bool) {
	snap, ok := r.devices[deviceID]
	if !ok {
		return nil, false
	}
	return &fakeDevice{id: deviceID, snap: snap}, true
}

// fakeCommander records every Send and fails for configured devices.
type fakeCommander struct {
	mu    sync.Mutex
	sent  map[string][]Command
	fails map[string]error
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		sent:  make(map[string][]Command),
		fails: make(map[string]error),
	}
}

func (c *fakeCommander) Send(_ context.Context, deviceID string, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent[deviceID] = append(c.sent[deviceID], cmd)
	if err, ok := c.fails[deviceID]; ok {
		return err
	}
	return nil
}

func (c *fakeCommander) sentTo(deviceID string) []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[deviceID]
}

func (c *fakeCommander) sendCount(deviceID string) int {
	return len(c.sentTo(deviceID))
}

// mustRoster builds a roster where every ref resolves with the given
// snapshot per device.
func mustRoster(t *testing.T, refs []MemberRef, snaps map[string]Snapshot) *Roster {
	t.Helper()

	roster, err := NewRoster(refs, &fakeRegistry{devices: snaps})
	if err != nil {
		t.Fatalf("NewRoster() error = %v", err)
	}
	return roster
}

func memberIDs(members []MemberRef) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.DeviceID
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var errBoom = errors.New("boom")
