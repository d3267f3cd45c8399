package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightgroupd/internal/api"
	"github.com/dokzlo13/lightgroupd/internal/config"
	"github.com/dokzlo13/lightgroupd/internal/db"
	"github.com/dokzlo13/lightgroupd/internal/eventbus"
	"github.com/dokzlo13/lightgroupd/internal/group"
	"github.com/dokzlo13/lightgroupd/internal/hue"
	"github.com/dokzlo13/lightgroupd/internal/ledger"
	"github.com/dokzlo13/lightgroupd/internal/state"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Store  *state.Store
	Bus    *eventbus.Bus

	// Bridge adapter; connected in Start
	Bridge *hue.Bridge
	Poller *hue.Poller

	// Group coordinators, built in Start after the bridge is connected
	Groups *GroupRegistry

	// High-level services
	API    *api.Server
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
// Anything that requires a live bridge connection is deferred to Start.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger and snapshot store
	s.Ledger = ledger.New(database.DB)
	s.Store = state.New(database.DB)

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	return s, nil
}

// Start connects to the bridge, builds the group coordinators and launches
// all background services. A group whose every member fails to resolve is a
// startup error: running a group that can never do anything helps nobody.
func (s *Services) Start(ctx context.Context) error {
	bridge, err := hue.Connect(ctx, s.cfg.Hue.Bridge, s.cfg.Hue.Token, s.cfg.Hue.Timeout.Duration())
	if err != nil {
		return err
	}
	s.Bridge = bridge

	s.pruneStaleGroups()

	s.Groups, err = NewGroupRegistry(s.cfg, bridge, s.Ledger, s.Store)
	if err != nil {
		return err
	}

	// Route member state events to the coordinators. Snapshots are also
	// persisted write-through, so the daemon reports last-known state
	// immediately after a restart.
	s.Bus.Subscribe(eventbus.EventTypeLightState, func(ev eventbus.Event) {
		snap, ok := ev.Data.(group.Snapshot)
		if !ok {
			log.Warn().Str("device", ev.DeviceID).Msg("Malformed light state event payload")
			return
		}
		s.Groups.Observe(ev.DeviceID, snap)
	})

	// Reachability transitions are worth an operator-visible log line.
	s.Bus.Subscribe(eventbus.EventTypeConnectivity, func(ev eventbus.Event) {
		reachable, ok := ev.Data.(bool)
		if !ok {
			return
		}
		if reachable {
			log.Info().Str("device", ev.DeviceID).Msg("Device became reachable")
		} else {
			log.Warn().Str("device", ev.DeviceID).Msg("Device became unreachable")
		}
	})

	// Start the bridge poller
	s.Poller = hue.NewPoller(bridge, s.Bus, s.cfg.Poll.Interval.Duration())
	go func() {
		if err := s.Poller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Bridge poller error")
		}
	}()

	// Start the group API server
	s.API = api.NewServer(s.cfg.API.Host, s.cfg.API.Port, s.Groups)
	go func() {
		if err := s.API.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	// Start the health check server
	s.Health = NewHealthService(s.cfg, s.Poller)
	s.Health.Start(ctx)

	// Start ledger retention cleanup
	go s.runLedgerCleanup(ctx)

	return nil
}

// pruneStaleGroups drops persisted snapshots of groups that are no longer
// configured.
func (s *Services) pruneStaleGroups() {
	persisted, err := s.Store.Groups()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list persisted groups")
		return
	}

	configured := make(map[string]bool, len(s.cfg.Groups))
	for _, g := range s.cfg.Groups {
		configured[g.Name] = true
	}

	for _, name := range persisted {
		if !configured[name] {
			if err := s.Store.DeleteGroup(name); err != nil {
				log.Warn().Err(err).Str("group", name).Msg("Failed to prune persisted group")
				continue
			}
			log.Info().Str("group", name).Msg("Pruned snapshots of removed group")
		}
	}
}

// runLedgerCleanup periodically enforces the ledger retention policy.
func (s *Services) runLedgerCleanup(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Ledger cleanup removed old entries")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	if s.Bus != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(closeCtx)
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
