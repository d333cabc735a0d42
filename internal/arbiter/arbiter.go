// Package arbiter serializes GPU occupancy between the two workloads. The
// accelerator has one memory budget sized for exactly one resident workload;
// admitting both would fail with out-of-memory deep inside model execution,
// so the decision is centralized into a single admission check here.
package arbiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Workload identifies a GPU occupant.
type Workload string

const (
	WorkloadNone      Workload = "none"
	WorkloadInference Workload = "inference"
	WorkloadTraining  Workload = "training"
)

// Evictor unloads a workload's resident model from GPU memory and returns
// only after the instance confirms, or the ctx deadline expires.
// Implemented by modelapi.Client.
type Evictor interface {
	UnloadModel(ctx context.Context, workload string) error
}

// AcquireResult is the outcome of an Acquire call.
type AcquireResult struct {
	Granted bool
	Evicted bool
	Message string
}

// Arbiter tracks which workload owns GPU memory. Invariant: at most one
// owner at any instant, and an owner switch always passes through
// WorkloadNone via a confirmed eviction.
type Arbiter struct {
	// admit serializes whole Acquire calls, eviction included, so two
	// concurrent acquirers can never both believe they won admission.
	admit sync.Mutex
	// mu guards the owner fields for short read/transition sections.
	mu    sync.Mutex
	owner Workload
	since time.Time

	evictor      Evictor
	evictTimeout time.Duration
	log          zerolog.Logger
}

// New returns an arbiter with no owner.
func New(evictor Evictor, evictTimeout time.Duration, log zerolog.Logger) *Arbiter {
	a := &Arbiter{
		owner:        WorkloadNone,
		since:        time.Now(),
		evictor:      evictor,
		evictTimeout: evictTimeout,
		log:          log.With().Str("component", "arbiter").Logger(),
	}
	observeOwner(WorkloadNone)
	return a
}

// Owner returns the current occupant and when it took ownership.
func (a *Arbiter) Owner() (Workload, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner, a.since
}

// TrainingActive reports whether training currently owns the GPU. Used by
// the lifecycle controller to reject stops that would truncate a run.
func (a *Arbiter) TrainingActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner == WorkloadTraining
}

// Acquire admits w to the GPU. Already-resident and free cases are granted
// immediately; when the other workload owns the GPU, its model is unloaded
// first and ownership passes through WorkloadNone. A failed or timed-out
// eviction leaves the previous owner in place and the grant is refused —
// callers must treat that as a hard failure and not proceed.
func (a *Arbiter) Acquire(ctx context.Context, w Workload) AcquireResult {
	if w != WorkloadInference && w != WorkloadTraining {
		return AcquireResult{Message: fmt.Sprintf("unknown workload %q", w)}
	}
	a.admit.Lock()
	defer a.admit.Unlock()

	a.mu.Lock()
	owner := a.owner
	if owner == w {
		a.mu.Unlock()
		return AcquireResult{Granted: true, Message: "already resident"}
	}
	if owner == WorkloadNone {
		a.setOwnerLocked(w)
		a.mu.Unlock()
		return AcquireResult{Granted: true}
	}
	a.mu.Unlock()

	if a.evictor == nil {
		return AcquireResult{Message: fmt.Sprintf("GPU owned by %s and no evictor configured", owner)}
	}

	// Evict the current owner. The unload command runs outside the state
	// lock; admit guarantees no competing transition.
	a.log.Info().Str("owner", string(owner)).Str("requested", string(w)).Msg("evicting GPU owner")
	ectx, cancel := context.WithTimeout(ctx, a.evictTimeout)
	err := a.evictor.UnloadModel(ectx, string(owner))
	cancel()
	if err != nil {
		evictionFailures.Inc()
		a.log.Error().Err(err).Str("owner", string(owner)).Msg("eviction failed, grant refused")
		return AcquireResult{Message: fmt.Sprintf("eviction of %s failed: %v", owner, err)}
	}
	evictionsTotal.Inc()

	a.mu.Lock()
	a.setOwnerLocked(WorkloadNone)
	a.setOwnerLocked(w)
	a.mu.Unlock()
	return AcquireResult{Granted: true, Evicted: true, Message: fmt.Sprintf("evicted %s", owner)}
}

// Release clears ownership only when w is the current owner; otherwise a
// no-op. Training calls this on completion, failure, or cancellation so
// inference can reclaim the GPU without an explicit eviction.
func (a *Arbiter) Release(w Workload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner != w {
		return
	}
	a.log.Info().Str("workload", string(w)).Msg("GPU released")
	a.setOwnerLocked(WorkloadNone)
}

func (a *Arbiter) setOwnerLocked(w Workload) {
	a.owner = w
	a.since = time.Now()
	observeOwner(w)
}
