package orchestrator

import (
	"context"
	"time"

	"gpud/internal/arbiter"
	"gpud/internal/health"
	"gpud/internal/lifecycle"
	"gpud/pkg/types"
)

// Status builds the aggregated snapshot for GET /v1/status. It triggers
// fresh bounded-timeout health probes but never mutates lifecycle or
// occupancy state. The snapshot is regenerated on every call, never cached.
func (o *Orchestrator) Status(ctx context.Context) types.StatusResponse {
	entries := o.hm.CheckAll(ctx)

	var state lifecycle.State = lifecycle.StateStopped
	var since time.Time
	var lastErr string
	if o.lc != nil {
		state, since, lastErr = o.lc.State()
	}
	owner, ownerSince := o.arb.Owner()
	preferred := o.hm.Preferred(state == lifecycle.StateReady)

	resp := types.StatusResponse{
		InstanceState:     string(state),
		InstanceSinceUnix: unixOrZero(since),
		LastError:         lastErr,
		PreferredBackend:  preferred,
		GPUOwner:          string(owner),
		GPUSinceUnix:      unixOrZero(ownerSince),
		Message:           statusMessage(state, owner, preferred, lastErr),
		UptimeSeconds:     int64(time.Since(o.startTime).Seconds()),
		ServerTimeUnix:    time.Now().Unix(),
	}
	if o.idle != nil {
		if at, armed := o.idle.ScheduledAt(); armed {
			resp.IdleShutdownAtUnix = at.Unix()
		}
	}
	resp.Backends = make([]types.BackendStatus, 0, len(entries))
	for _, e := range entries {
		b := types.BackendStatus{
			Name:                e.Name,
			Available:           e.Available,
			Mode:                e.Mode,
			LastCheckedUnix:     unixOrZero(e.LastChecked),
			ConsecutiveFailures: e.ConsecutiveFailures,
		}
		if e.HasLatency {
			ms := e.LatencyMs
			b.LatencyMs = &ms
		}
		resp.Backends = append(resp.Backends, b)
	}
	return resp
}

func statusMessage(state lifecycle.State, owner arbiter.Workload, preferred, lastErr string) string {
	switch {
	case owner == arbiter.WorkloadTraining:
		return "training job holds the GPU"
	case state == lifecycle.StateReady && owner == arbiter.WorkloadInference:
		return "instance ready, inference model resident"
	case state == lifecycle.StateReady:
		return "instance ready"
	case state == lifecycle.StateStarting:
		return "instance starting"
	case state == lifecycle.StateStopPending:
		return "instance stopping"
	case preferred == health.BackendServerless:
		return "serving via serverless fallback"
	case state == lifecycle.StateError:
		return "instance error: " + lastErr
	case state == lifecycle.StateDegraded:
		return "instance degraded"
	default:
		return "no backend available"
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
