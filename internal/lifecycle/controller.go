// Package lifecycle drives the remote GPU instance through its start/stop
// lifecycle and tracks boot/ready state.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gpud/internal/compute"
)

// State is the lifecycle state of the managed instance.
type State string

const (
	StateStopped     State = "stopped"
	StateStarting    State = "starting"
	StateReady       State = "ready"
	StateDegraded    State = "degraded"
	StateStopPending State = "stop_pending"
	StateError       State = "error"
)

// ReadinessProber checks whether the instance-hosted service can serve.
// Implemented by modelapi.Client.
type ReadinessProber interface {
	Ready(ctx context.Context) (bool, error)
}

// Config holds the controller's timing parameters.
type Config struct {
	// BootTimeout escalates Starting to Error when the service has not
	// become ready this long after the start command.
	BootTimeout time.Duration
	// ControlTimeout bounds each control-plane call (describe/start/stop).
	ControlTimeout time.Duration
	// ProbeTimeout bounds each readiness probe.
	ProbeTimeout time.Duration
	// PollInterval is the cadence of the background reconcile loop.
	PollInterval time.Duration
}

// StartResult is the outcome of a Start call.
type StartResult struct {
	Ready    bool
	Starting bool
	Message  string
}

// Controller owns the instance lifecycle state machine. All transitions
// happen under mu; control-plane calls run outside the lock with an intent
// flag preventing duplicate concurrent start commands.
type Controller struct {
	mu        sync.Mutex
	state     State
	since     time.Time
	lastErr   string
	startedAt time.Time
	// startInFlight marks that some caller is issuing the remote start
	// command right now; concurrent callers observe Starting and wait.
	startInFlight bool

	compute compute.Client
	probe   ReadinessProber
	cfg     Config
	// guard reports whether a stop must be rejected (training owns the GPU).
	guard func() bool
	log   zerolog.Logger
}

// New returns a controller in the Stopped state.
func New(client compute.Client, probe ReadinessProber, cfg Config, log zerolog.Logger) *Controller {
	c := &Controller{
		compute: client,
		probe:   probe,
		cfg:     cfg,
		state:   StateStopped,
		since:   time.Now(),
		log:     log.With().Str("component", "lifecycle").Logger(),
	}
	observeState(StateStopped)
	return c
}

// SetStopGuard installs the occupancy check consulted before any stop.
func (c *Controller) SetStopGuard(guard func() bool) {
	c.mu.Lock()
	c.guard = guard
	c.mu.Unlock()
}

// State returns the current state, when it was entered, and the last error.
func (c *Controller) State() (State, time.Time, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.since, c.lastErr
}

// Ready reports whether the instance-hosted service can serve right now.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady
}

// Start brings the instance up if needed. It never blocks on full boot:
// when a start command is issued the caller gets Starting=true and observes
// completion through later Start/State calls. Idempotent under concurrency:
// exactly one remote start command is issued per Stopped->Starting
// transition.
func (c *Controller) Start(ctx context.Context) (StartResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return StartResult{Ready: true, Message: "instance ready"}, nil
	case StateStarting, StateDegraded:
		msg := "instance starting"
		if c.state == StateDegraded {
			msg = "instance degraded, awaiting recovery"
		}
		c.mu.Unlock()
		return StartResult{Starting: true, Message: msg}, nil
	case StateStopPending:
		c.mu.Unlock()
		return StartResult{Message: "instance stop in progress; retry shortly"}, nil
	}
	// Stopped or Error: this caller may issue the start command.
	if c.startInFlight {
		c.mu.Unlock()
		return StartResult{Starting: true, Message: "instance start in progress"}, nil
	}
	c.startInFlight = true
	c.mu.Unlock()

	res, err := c.issueStart(ctx)

	c.mu.Lock()
	c.startInFlight = false
	c.mu.Unlock()
	return res, err
}

// issueStart reconciles with the control plane and issues the start command
// when the instance really is stopped. Runs with startInFlight held.
func (c *Controller) issueStart(ctx context.Context) (StartResult, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.ControlTimeout)
	defer cancel()

	status, err := c.compute.Describe(dctx)
	if err != nil {
		c.fail(fmt.Sprintf("describe instance: %v", err))
		return StartResult{Message: "control plane unreachable"}, err
	}
	switch status {
	case compute.StatusRunning, compute.StatusPending:
		// Already coming up (started externally or by a prior command).
		c.transition(StateStarting, "")
		return StartResult{Starting: true, Message: "instance already starting"}, nil
	case compute.StatusStopping:
		return StartResult{Message: "instance is stopping; retry shortly"}, nil
	}

	c.log.Info().Msg("issuing instance start command")
	if err := c.compute.Start(dctx); err != nil {
		c.fail(fmt.Sprintf("start instance: %v", err))
		return StartResult{Message: "instance start command failed"}, err
	}
	startsTotal.Inc()
	c.transition(StateStarting, "")
	return StartResult{Starting: true, Message: "instance starting"}, nil
}

// Stop requests an instance shutdown. Returns false with no state change
// when the stop guard rejects it (training owns the GPU) — the arbiter must
// relinquish ownership first. The Stopped state is confirmed asynchronously
// by the reconcile loop once the control plane reports it.
func (c *Controller) Stop(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return true, nil
	}
	if c.guard != nil && c.guard() {
		c.mu.Unlock()
		c.log.Info().Msg("stop rejected: training owns the GPU")
		return false, nil
	}
	if c.state == StateStopPending {
		c.mu.Unlock()
		return true, nil
	}
	c.transitionLocked(StateStopPending, "")
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ControlTimeout)
	defer cancel()
	if err := c.compute.Stop(dctx); err != nil {
		c.fail(fmt.Sprintf("stop instance: %v", err))
		return false, err
	}
	stopsTotal.Inc()
	c.log.Info().Msg("instance stop command issued")
	return true, nil
}

// PollReadiness performs a single bounded-timeout check appropriate to the
// current state and applies the resulting transition. Transient probe
// failures during Starting are absorbed until BootTimeout.
func (c *Controller) PollReadiness(ctx context.Context) State {
	c.mu.Lock()
	state := c.state
	startedAt := c.startedAt
	c.mu.Unlock()

	switch state {
	case StateStarting:
		ok, err := c.probeReady(ctx)
		if ok {
			c.transitionIf(StateStarting, StateReady, "")
			break
		}
		if time.Since(startedAt) > c.cfg.BootTimeout {
			msg := fmt.Sprintf("instance failed to become ready within %s", c.cfg.BootTimeout)
			if err != nil {
				msg = fmt.Sprintf("%s: %v", msg, err)
			}
			c.transitionIf(StateStarting, StateError, msg)
		}
	case StateReady:
		ok, err := c.probeReady(ctx)
		if !ok {
			msg := "readiness probe failing"
			if err != nil {
				msg = fmt.Sprintf("readiness probe failing: %v", err)
			}
			c.transitionIf(StateReady, StateDegraded, msg)
		}
	case StateDegraded:
		if ok, _ := c.probeReady(ctx); ok {
			c.transitionIf(StateDegraded, StateReady, "")
		}
	case StateStopPending:
		dctx, cancel := context.WithTimeout(ctx, c.cfg.ControlTimeout)
		status, err := c.compute.Describe(dctx)
		cancel()
		if err == nil && status == compute.StatusStopped {
			c.transitionIf(StateStopPending, StateStopped, "")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run reconciles state on a fixed cadence until ctx is cancelled. This is
// the scheduled re-check that drives Starting->Ready/Error and
// StopPending->Stopped without requiring caller polling.
func (c *Controller) Run(ctx context.Context) {
	t := time.NewTicker(c.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.PollReadiness(ctx)
		}
	}
}

func (c *Controller) probeReady(ctx context.Context) (bool, error) {
	pctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	return c.probe.Ready(pctx)
}

func (c *Controller) transition(to State, errMsg string) {
	c.mu.Lock()
	c.transitionLocked(to, errMsg)
	c.mu.Unlock()
}

// transitionIf applies the transition only when the state is still `from`,
// so a slow probe result cannot clobber a newer transition.
func (c *Controller) transitionIf(from, to State, errMsg string) {
	c.mu.Lock()
	if c.state == from {
		c.transitionLocked(to, errMsg)
	}
	c.mu.Unlock()
}

func (c *Controller) fail(msg string) {
	c.transition(StateError, msg)
}

func (c *Controller) transitionLocked(to State, errMsg string) {
	if c.state != to {
		c.since = time.Now()
		c.log.Info().Str("from", string(c.state)).Str("to", string(to)).Str("err", errMsg).Msg("instance state transition")
	}
	if to == StateStarting && c.state != StateStarting {
		c.startedAt = time.Now()
	}
	c.state = to
	c.lastErr = errMsg
	observeState(to)
}
