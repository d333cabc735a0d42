// Package orchestrator is the single entry point for GPU resource
// coordination. It composes the lifecycle controller, health monitor, GPU
// arbiter, and idle scheduler into the three operations the route layer
// calls. It is structured into small files by concern:
//
//   - orchestrator.go: Orchestrator type, constructor, the ensure/release
//     operations.
//   - status.go: read-only status aggregation.
//   - errors.go: typed failures and helpers (IsGPUBusy,
//     IsInstanceUnavailable, IsConfigMissing, IsControlPlane).
//   - events.go: EventPublisher and the default no-op publisher.
//   - eventpub_memory.go: in-memory publisher for tests.
//
// The façade is the only component permitted to request GPU eviction or an
// instance stop; route handlers must not reach past it. External packages
// should use public methods only (EnsureReadyForInference,
// EnsureGPUAvailableForTraining, ReleaseTraining, NoteActivity, Status,
// Ready).
package orchestrator
