package hue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightgroupd/internal/eventbus"
	"github.com/dokzlo13/lightgroupd/internal/group"
)

// Poller periodically fetches light state from the bridge and publishes a
// light_state event for every resolved device whose snapshot changed since
// the previous cycle. Group state only ever moves in response to these
// events, never as a direct effect of dispatching a command.
type Poller struct {
	bridge   *Bridge
	bus      *eventbus.Bus
	interval time.Duration

	ready atomic.Bool

	mu   sync.Mutex
	last map[string]group.Snapshot
}

// NewPoller creates a poller publishing to the given bus.
func NewPoller(bridge *Bridge, bus *eventbus.Bus, interval time.Duration) *Poller {
	return &Poller{
		bridge:   bridge,
		bus:      bus,
		interval: interval,
		last:     make(map[string]group.Snapshot),
	}
}

// Ready reports whether at least one poll cycle has completed since start.
func (p *Poller) Ready() bool {
	return p.ready.Load()
}

// Run polls until the context is cancelled. Poll errors are logged and
// retried on the next tick; the bridge being temporarily unreachable must
// not take the daemon down.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.interval).Msg("Bridge poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First cycle immediately, so state is fresh right after startup.
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Bridge poller stopping")
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	snapshots, err := p.bridge.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("Failed to poll bridge")
		}
		return
	}

	p.mu.Lock()
	prev := p.last
	changed := diffSnapshots(prev, snapshots)
	p.last = snapshots
	p.mu.Unlock()

	for _, id := range changed {
		snap := snapshots[id]
		p.bus.Publish(eventbus.Event{
			Type:     eventbus.EventTypeLightState,
			DeviceID: id,
			Data:     snap,
		})
		if old, ok := prev[id]; ok && old.Reachable != snap.Reachable {
			p.bus.Publish(eventbus.Event{
				Type:     eventbus.EventTypeConnectivity,
				DeviceID: id,
				Data:     snap.Reachable,
			})
		}
	}

	p.ready.Store(true)

	if len(changed) > 0 {
		log.Debug().Int("changed", len(changed)).Msg("Poll cycle published state events")
	}
}

// diffSnapshots returns the IDs whose snapshot differs from the previous
// cycle, including IDs seen for the first time.
func diffSnapshots(prev, next map[string]group.Snapshot) []string {
	var changed []string
	for id, snap := range next {
		if old, ok := prev[id]; !ok || !snapshotsEqual(old, snap) {
			changed = append(changed, id)
		}
	}
	return changed
}
