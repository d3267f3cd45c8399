package group

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Roster holds the resolved, order-preserving member list of one group
// together with the last observed snapshot for each member. Members that
// did not resolve at construction are gone for the roster's lifetime;
// re-resolution means building a new roster.
type Roster struct {
	mu        sync.RWMutex
	members   []MemberRef
	snapshots map[string]Snapshot
	version   uint64 // bumped on every snapshot update
}

// NewRoster resolves the configured refs against the registry and builds a
// roster from the survivors, seeding each member's snapshot from the
// resolved device. Unresolved refs are dropped without error; duplicate
// device IDs keep their first occurrence. Returns ErrEmptyGroup if nothing
// survives.
func NewRoster(refs []MemberRef, registry Registry) (*Roster, error) {
	members := make([]MemberRef, 0, len(refs))
	snapshots := make(map[string]Snapshot, len(refs))

	for _, ref := range refs {
		if _, dup := snapshots[ref.DeviceID]; dup {
			log.Warn().Str("device", ref.DeviceID).Msg("Duplicate member in group config, keeping first")
			continue
		}

		dev, ok := registry.Resolve(ref.DeviceID)
		if !ok {
			log.Debug().Str("device", ref.DeviceID).Str("role", ref.Role.String()).Msg("Member does not resolve, dropping from roster")
			continue
		}

		members = append(members, ref)
		snapshots[ref.DeviceID] = dev.Snapshot()
	}

	if len(members) == 0 {
		return nil, ErrEmptyGroup
	}

	return &Roster{
		members:   members,
		snapshots: snapshots,
		version:   1,
	}, nil
}

// Update overwrites the stored snapshot for a member and bumps the roster
// version so the next aggregate read recomputes. Events for devices that
// are not members are ignored; Update reports whether the device was known.
func (r *Roster) Update(deviceID string, snap Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[deviceID]; !ok {
		return false
	}

	r.snapshots[deviceID] = snap
	r.version++
	return true
}

// SnapshotOf returns the stored snapshot for a member.
func (r *Roster) SnapshotOf(deviceID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[deviceID]
	return snap, ok
}

// Members returns the roster members in configuration order, optionally
// filtered by role. The returned slice is a copy; re-querying after an
// update reflects the latest contents.
func (r *Roster) Members(roles ...Role) []MemberRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(roles) == 0 {
		out := make([]MemberRef, len(r.members))
		copy(out, r.members)
		return out
	}

	var out []MemberRef
	for _, m := range r.members {
		for _, role := range roles {
			if m.Role == role {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Size returns the number of members in the roster.
func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Version returns the roster's snapshot version. It changes whenever any
// member snapshot is overwritten.
func (r *Roster) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
