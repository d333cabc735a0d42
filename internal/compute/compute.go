// Package compute talks to the control plane of the remote GPU instance.
// The orchestrator only needs three operations: describe, start, stop.
package compute

import "context"

// InstanceStatus is the control-plane view of the instance, normalized from
// provider-specific state names.
type InstanceStatus string

const (
	StatusStopped  InstanceStatus = "stopped"
	StatusPending  InstanceStatus = "pending"
	StatusRunning  InstanceStatus = "running"
	StatusStopping InstanceStatus = "stopping"
	StatusUnknown  InstanceStatus = "unknown"
)

// Client drives the remote instance lifecycle. Every call is a single
// bounded-timeout network operation; callers supply the deadline via ctx.
type Client interface {
	// Describe returns the current control-plane status of the instance.
	Describe(ctx context.Context) (InstanceStatus, error)
	// Start issues a start command. Idempotence is the caller's concern.
	Start(ctx context.Context) error
	// Stop issues a stop command.
	Stop(ctx context.Context) error
}
