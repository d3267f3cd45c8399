package group

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultRateLimitRPS bounds how many per-member commands a group issues
// per second when no explicit limit is configured.
const DefaultRateLimitRPS = 10.0

// Coordinator owns one roster for its lifetime. It derives the group's
// aggregate state from the roster's snapshots and translates group
// commands into concurrent per-member dispatches. Dispatch never mutates
// snapshots: the reported state only moves once the resulting member state
// events come back through Observe (write-then-observe).
type Coordinator struct {
	name      string
	roster    *Roster
	commander Commander
	policy    Policy
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu            sync.Mutex
	cached        State
	cachedVersion uint64 // 0 = never computed
}

// New creates a coordinator with the default aggregation policy and rate
// limit.
func New(name string, roster *Roster, commander Commander) *Coordinator {
	return NewWithConfig(name, roster, commander, PolicyFirstOn, DefaultRateLimitRPS)
}

// NewWithConfig creates a coordinator with an explicit aggregation policy
// and per-member command rate limit.
func NewWithConfig(name string, roster *Roster, commander Commander, policy Policy, rateLimitRPS float64) *Coordinator {
	if rateLimitRPS <= 0 {
		rateLimitRPS = DefaultRateLimitRPS
	}

	// Sub-1 RPS limits are legal; the burst must stay at least 1 or every
	// Wait fails immediately.
	burst := int(rateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &Coordinator{
		name:      name,
		roster:    roster,
		commander: commander,
		policy:    policy,
		limiter:   rate.NewLimiter(rate.Limit(rateLimitRPS), burst),
		logger:    log.With().Str("group", name).Logger(),
	}
}

// Name returns the group name.
func (c *Coordinator) Name() string {
	return c.name
}

// Roster returns the coordinator's member roster.
func (c *Coordinator) Roster() *Roster {
	return c.roster
}

// Observe delivers a member state event: overwrite snapshot, mark dirty.
// Events for devices outside the roster are dropped (devices removed
// mid-session keep emitting for a while).
func (c *Coordinator) Observe(deviceID string, snap Snapshot) {
	if !c.roster.Update(deviceID, snap) {
		c.logger.Debug().Str("device", deviceID).Msg("State event for unknown member, dropping")
		return
	}

	c.logger.Debug().
		Str("device", deviceID).
		Bool("on", snap.On).
		Bool("reachable", snap.Reachable).
		Msg("Member snapshot updated")
}

// CurrentState returns the aggregate group state, recomputing it only when
// a snapshot changed since the last read.
func (c *Coordinator) CurrentState() State {
	version := c.roster.Version()

	c.mu.Lock()
	defer c.mu.Unlock()

	if version != c.cachedVersion {
		c.cached = Aggregate(c.roster, c.policy)
		c.cachedVersion = version
	}
	return c.cached
}

// HandleCommand translates one group command into per-member commands and
// dispatches them concurrently, gathering the individual results into one
// outcome. An empty target set completes as a successful empty operation.
// The returned error is non-nil only when every targeted member command
// failed; partial failures are reported through the outcome alone.
func (c *Coordinator) HandleCommand(ctx context.Context, cmd Command) (Outcome, error) {
	effective := cmd
	if cmd.Type == CommandToggle {
		// Toggle is keyed to the main lights: an aux-only glow still
		// counts as "off" for toggling purposes.
		if c.CurrentState().MainOn {
			effective.Type = CommandTurnOff
		} else {
			effective.Type = CommandTurnOn
		}
		c.logger.Debug().Str("resolved", effective.Type.String()).Msg("Toggle resolved")
	}

	if effective.Type == CommandSetAttributes && effective.Attrs.IsEmpty() {
		// Nothing to apply.
		return Outcome{Status: StatusOK}, nil
	}

	targets := Targets(effective, c.roster)
	if len(targets) == 0 {
		c.logger.Debug().Str("command", effective.Type.String()).Msg("Empty target set, nothing dispatched")
		return Outcome{Status: StatusOK}, nil
	}

	// Fan out one independent command per target and join. A slow member
	// delays completion of the group command but never blocks its siblings.
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, m := range targets {
		wg.Add(1)
		go func(i int, m MemberRef) {
			defer wg.Done()

			if err := c.limiter.Wait(ctx); err != nil {
				errs[i] = err
				return
			}
			errs[i] = c.commander.Send(ctx, m.DeviceID, effective)
		}(i, m)
	}
	wg.Wait()

	out := Outcome{
		Status:  StatusOK,
		Targets: make([]string, len(targets)),
	}
	for i, m := range targets {
		out.Targets[i] = m.DeviceID
		if errs[i] != nil {
			out.Failed = append(out.Failed, MemberError{DeviceID: m.DeviceID, Err: errs[i]})
		}
	}

	switch {
	case len(out.Failed) == len(targets):
		out.Status = StatusFailed
		c.logger.Error().
			Str("command", effective.Type.String()).
			Int("targets", len(targets)).
			Msg("All member commands failed")
		return out, ErrAllMembersFailed

	case len(out.Failed) > 0:
		out.Status = StatusPartial
		c.logger.Warn().
			Str("command", effective.Type.String()).
			Int("targets", len(targets)).
			Int("failed", len(out.Failed)).
			Msg("Some member commands failed")

	default:
		c.logger.Debug().
			Str("command", effective.Type.String()).
			Int("targets", len(targets)).
			Msg("Command dispatched")
	}

	return out, nil
}
