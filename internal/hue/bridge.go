// Package hue adapts a Philips Hue bridge to the group package's registry
// and commander contracts. Configured member identifiers are light names or
// numeric light IDs; both resolve to the same underlying device.
package hue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightgroupd/internal/group"
)

// Bridge wraps a huego bridge connection and tracks which configured
// identifiers have been resolved, so the poller only reports devices that
// belong to some roster.
type Bridge struct {
	bridge  *huego.Bridge
	timeout time.Duration

	mu       sync.RWMutex
	byName   map[string]int            // light name -> hue light ID
	resolved map[string]int            // configured identifier -> hue light ID
	lights   map[int]group.Snapshot    // hue light ID -> last fetched snapshot
}

// Connect creates a bridge handle and verifies connectivity by fetching the
// current light inventory.
func Connect(ctx context.Context, host, token string, timeout time.Duration) (*Bridge, error) {
	b := &Bridge{
		bridge:   huego.New(host, token),
		timeout:  timeout,
		byName:   make(map[string]int),
		resolved: make(map[string]int),
		lights:   make(map[int]group.Snapshot),
	}

	if _, err := b.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to hue bridge %s: %w", host, err)
	}

	log.Info().Str("bridge", host).Int("lights", len(b.byName)).Msg("Connected to Hue bridge")
	return b, nil
}

// Refresh fetches the current state of all lights from the bridge and
// returns the snapshots of every resolved device, keyed by configured
// identifier.
func (b *Bridge) Refresh(ctx context.Context) (map[string]group.Snapshot, error) {
	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	lights, err := b.bridge.GetLightsContext(reqCtx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.byName = make(map[string]int, len(lights))
	b.lights = make(map[int]group.Snapshot, len(lights))
	for i := range lights {
		l := &lights[i]
		b.byName[l.Name] = l.ID
		b.lights[l.ID] = snapshotFromState(l.State)
	}

	out := make(map[string]group.Snapshot, len(b.resolved))
	for id, lightID := range b.resolved {
		snap, ok := b.lights[lightID]
		if !ok {
			// Light disappeared from the bridge; report it unreachable
			// rather than dropping it from the roster mid-session.
			snap = group.Snapshot{}
		}
		out[id] = snap
	}
	return out, nil
}

// Resolve implements group.Registry. A configured identifier resolves if it
// matches a light name or a numeric light ID known to the bridge.
func (b *Bridge) Resolve(deviceID string) (group.Device, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lightID, ok := b.lookupLocked(deviceID)
	if !ok {
		return nil, false
	}

	b.resolved[deviceID] = lightID
	return &device{id: deviceID, snap: b.lights[lightID]}, true
}

func (b *Bridge) lookupLocked(deviceID string) (int, bool) {
	if id, ok := b.byName[deviceID]; ok {
		return id, true
	}
	if n, err := strconv.Atoi(deviceID); err == nil {
		if _, ok := b.lights[n]; ok {
			return n, true
		}
	}
	return 0, false
}

// Send implements group.Commander by translating one member command into a
// Hue light state write.
func (b *Bridge) Send(ctx context.Context, deviceID string, cmd group.Command) error {
	b.mu.RLock()
	lightID, ok := b.resolved[deviceID]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("device %q was never resolved", deviceID)
	}

	state, err := stateFromCommand(cmd)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if _, err := b.bridge.SetLightStateContext(reqCtx, lightID, state); err != nil {
		return fmt.Errorf("light %q: %w", deviceID, err)
	}
	return nil
}

// stateFromCommand maps a member command onto the Hue state write that
// realizes it. set_attributes keeps on=true: it only ever targets lights
// that already report on, and Hue rejects attribute writes to off lights.
func stateFromCommand(cmd group.Command) (huego.State, error) {
	var state huego.State

	switch cmd.Type {
	case group.CommandTurnOn, group.CommandSetAttributes:
		state.On = true
	case group.CommandTurnOff:
		state.On = false
		// The bridge rejects attribute parameters combined with on:false;
		// only the transition time may accompany a switch-off.
		if a := cmd.Attrs; a != nil && a.TransitionTime != nil {
			state.TransitionTime = *a.TransitionTime
		}
		return state, nil
	default:
		return state, fmt.Errorf("command %q cannot be sent to a device", cmd.Type)
	}

	if a := cmd.Attrs; a != nil {
		if a.Bri != nil {
			state.Bri = clampUint8(*a.Bri, 1, 254)
		}
		if a.Hue != nil {
			state.Hue = *a.Hue
		}
		if a.Sat != nil {
			state.Sat = clampUint8(*a.Sat, 0, 254)
		}
		if a.Ct != nil {
			state.Ct = clampUint16(*a.Ct, 153, 500)
		}
		if len(a.Xy) == 2 {
			state.Xy = []float32{a.Xy[0], a.Xy[1]}
		}
		if a.TransitionTime != nil {
			state.TransitionTime = *a.TransitionTime
		}
	}

	return state, nil
}

func clampUint8(v, lo, hi uint8) uint8 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUint16(v, lo, hi uint16) uint16 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// device is a resolved member handle carrying the snapshot observed at
// resolution time.
type device struct {
	id   string
	snap group.Snapshot
}

func (d *device) ID() string               { return d.id }
func (d *device) Snapshot() group.Snapshot { return d.snap }
