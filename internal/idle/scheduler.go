// Package idle stops the GPU instance after a period with no activity, to
// control cost. The timer is single-shot: it sleeps until it fires or is
// cancelled, never polling.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler arms an inactivity timer whose expiry requests an instance stop.
type Scheduler struct {
	mu      sync.Mutex
	timer   *time.Timer
	firesAt time.Time // zero when disarmed

	window time.Duration
	// canArm gates arming: the instance must be up and the GPU must not be
	// running a training job worth keeping it alive for.
	canArm func() bool
	// stop requests the shutdown; false means the stop was rejected
	// (training owns the GPU) and the scheduler must wait for the next
	// activity/release signal rather than busy-retry.
	stop        func(ctx context.Context) (bool, error)
	stopTimeout time.Duration
	log         zerolog.Logger
}

// New returns a disarmed scheduler.
func New(window, stopTimeout time.Duration, canArm func() bool, stop func(ctx context.Context) (bool, error), log zerolog.Logger) *Scheduler {
	return &Scheduler{
		window:      window,
		canArm:      canArm,
		stop:        stop,
		stopTimeout: stopTimeout,
		log:         log.With().Str("component", "idle").Logger(),
	}
}

// NoteActivity cancels any pending shutdown and re-arms the timer when the
// arm condition holds. Called on every successful orchestrator operation
// and on GPU release.
func (s *Scheduler) NoteActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	if s.canArm == nil || !s.canArm() {
		return
	}
	s.firesAt = time.Now().Add(s.window)
	s.timer = time.AfterFunc(s.window, s.expire)
	s.log.Debug().Time("fires_at", s.firesAt).Msg("idle shutdown armed")
}

// Cancel clears the timer without side effects. Used for operator
// keep-alives and when an imminent request is known.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

// ScheduledAt reports when the pending shutdown will fire, if one is armed.
func (s *Scheduler) ScheduledAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firesAt, !s.firesAt.IsZero()
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.firesAt = time.Time{}
}

func (s *Scheduler) expire() {
	s.mu.Lock()
	// A concurrent NoteActivity may have disarmed between the timer firing
	// and this lock; the zero firesAt tells us to stand down.
	if s.firesAt.IsZero() {
		s.mu.Unlock()
		return
	}
	s.disarmLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()
	stopped, err := s.stop(ctx)
	switch {
	case err != nil:
		s.log.Error().Err(err).Msg("idle shutdown failed")
	case !stopped:
		// Rejected (training owns the GPU). No busy retry: the next
		// activity or release signal reschedules.
		s.log.Info().Msg("idle shutdown rejected, waiting for next signal")
	default:
		idleShutdowns.Inc()
		s.log.Info().Msg("idle shutdown requested")
	}
}
