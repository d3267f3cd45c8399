package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightgroupd/internal/api"
	"github.com/dokzlo13/lightgroupd/internal/config"
	"github.com/dokzlo13/lightgroupd/internal/group"
	"github.com/dokzlo13/lightgroupd/internal/hue"
	"github.com/dokzlo13/lightgroupd/internal/ledger"
	"github.com/dokzlo13/lightgroupd/internal/state"
)

// GroupRegistry owns all configured group coordinators and implements the
// API's group service. It routes member state events to the coordinators
// that share the device and records every dispatched command in the ledger.
type GroupRegistry struct {
	names        []string // configuration order
	coordinators map[string]*group.Coordinator
	membership   map[string][]string // device ID -> names of groups containing it

	ledger *ledger.Ledger
	store  *state.Store
}

// NewGroupRegistry builds one coordinator per configured group. Every member
// reference is resolved against the bridge; a group left with zero members
// fails construction.
func NewGroupRegistry(cfg *config.Config, bridge *hue.Bridge, lg *ledger.Ledger, store *state.Store) (*GroupRegistry, error) {
	r := &GroupRegistry{
		coordinators: make(map[string]*group.Coordinator, len(cfg.Groups)),
		membership:   make(map[string][]string),
		ledger:       lg,
		store:        store,
	}

	for _, gc := range cfg.Groups {
		refs := memberRefs(gc)

		roster, err := group.NewRoster(refs, bridge)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", gc.Name, err)
		}

		// Seed last-known state from the previous run. The first poll
		// cycle replaces these with live observations moments later.
		persisted, err := store.LoadGroup(gc.Name)
		if err != nil {
			log.Warn().Err(err).Str("group", gc.Name).Msg("Failed to load persisted snapshots")
		}
		for deviceID, snap := range persisted {
			roster.Update(deviceID, snap)
		}

		coordinator := group.NewWithConfig(gc.Name, roster, bridge, policyFromConfig(gc.Aggregation), cfg.Dispatch.RateLimitRPS)

		r.names = append(r.names, gc.Name)
		r.coordinators[gc.Name] = coordinator
		for _, m := range roster.Members() {
			r.membership[m.DeviceID] = append(r.membership[m.DeviceID], gc.Name)
		}

		log.Info().
			Str("group", gc.Name).
			Int("members", roster.Size()).
			Str("aggregation", policyFromConfig(gc.Aggregation).String()).
			Msg("Group ready")
	}

	return r, nil
}

// memberRefs builds the ordered roster references for one group: main
// lights first, then auxiliary, each list in configuration order.
func memberRefs(gc config.GroupConfig) []group.MemberRef {
	refs := make([]group.MemberRef, 0, len(gc.MainLights)+len(gc.AuxiliaryLights))
	for _, id := range gc.MainLights {
		refs = append(refs, group.MemberRef{DeviceID: id, Role: group.RoleMain})
	}
	for _, id := range gc.AuxiliaryLights {
		refs = append(refs, group.MemberRef{DeviceID: id, Role: group.RoleAuxiliary})
	}
	return refs
}

func policyFromConfig(aggregation string) group.Policy {
	if aggregation == "mean" {
		return group.PolicyMean
	}
	return group.PolicyFirstOn
}

// Observe delivers a member state event to every group containing the
// device and persists the snapshot write-through.
func (r *GroupRegistry) Observe(deviceID string, snap group.Snapshot) {
	for _, name := range r.membership[deviceID] {
		r.coordinators[name].Observe(deviceID, snap)
		if err := r.store.Save(name, deviceID, snap); err != nil {
			log.Warn().Err(err).Str("group", name).Str("device", deviceID).Msg("Failed to persist snapshot")
		}
	}
}

// Names implements api.GroupService.
func (r *GroupRegistry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// State implements api.GroupService.
func (r *GroupRegistry) State(name string) (group.State, error) {
	coordinator, ok := r.coordinators[name]
	if !ok {
		return group.State{}, api.ErrGroupNotFound
	}
	return coordinator.CurrentState(), nil
}

// Command implements api.GroupService. Every dispatch is recorded in the
// ledger, failed ones included.
func (r *GroupRegistry) Command(ctx context.Context, name string, cmd group.Command) (group.Outcome, error) {
	coordinator, ok := r.coordinators[name]
	if !ok {
		return group.Outcome{}, api.ErrGroupNotFound
	}

	outcome, err := coordinator.HandleCommand(ctx, cmd)

	if _, recordErr := r.ledger.Record(name, cmd, outcome); recordErr != nil {
		log.Error().Err(recordErr).Str("group", name).Msg("Failed to record command in ledger")
	}

	return outcome, err
}
