package types

// BackendStatus summarizes one inference backend for GET /v1/status.
type BackendStatus struct {
	// Backend name: "instance" (self-managed GPU) or "serverless".
	// example: instance
	Name string `json:"name" example:"instance"`
	// Whether the last probe within the freshness window succeeded.
	// example: true
	Available bool `json:"available" example:"true"`
	// Operating mode reported by the backend (realtime, degraded, loading).
	// example: realtime
	Mode string `json:"mode,omitempty" example:"realtime"`
	// Round-trip latency of the last successful probe in milliseconds.
	// Omitted when the backend has never been reached.
	// example: 412
	LatencyMs *int64 `json:"latency_ms,omitempty" example:"412"`
	// Time of the last probe attempt (unix seconds). 0 when never probed.
	// example: 1700000000
	LastCheckedUnix int64 `json:"last_checked_unix" example:"1700000000"`
	// Number of consecutive failed probes.
	// example: 0
	ConsecutiveFailures int `json:"consecutive_failures" example:"0"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	// Lifecycle state of the self-managed instance
	// (stopped, starting, ready, degraded, stop_pending, error).
	// example: ready
	InstanceState string `json:"instance_state" example:"ready"`
	// Time of the last instance state transition (unix seconds).
	// example: 1700000000
	InstanceSinceUnix int64 `json:"instance_since_unix" example:"1700000000"`
	// Last lifecycle error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Health of both backends.
	Backends []BackendStatus `json:"backends"`
	// Backend that would serve the next inference request; empty when none
	// is available.
	// example: instance
	PreferredBackend string `json:"preferred_backend,omitempty" example:"instance"`
	// Current GPU owner (none, inference, training).
	// example: inference
	GPUOwner string `json:"gpu_owner" example:"inference"`
	// Time the current owner acquired the GPU (unix seconds).
	// example: 1700000000
	GPUSinceUnix int64 `json:"gpu_since_unix,omitempty" example:"1700000000"`
	// When the idle shutdown will fire (unix seconds); 0 when no timer is
	// armed.
	// example: 1700000900
	IdleShutdownAtUnix int64 `json:"idle_shutdown_at_unix,omitempty" example:"1700000900"`
	// Human-readable summary of the orchestrator state.
	// example: instance ready, inference model resident
	Message string `json:"message" example:"instance ready, inference model resident"`
	// Uptime of the orchestrator in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// EnsureInferenceResponse is returned by POST /v1/inference/ensure.
type EnsureInferenceResponse struct {
	// True when some backend can serve inference right now.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// True when the instance is booting and no fallback is available yet.
	// example: false
	Starting bool `json:"starting" example:"false"`
	// Backend that will serve the request ("instance" or "serverless").
	// example: serverless
	Backend string `json:"backend,omitempty" example:"serverless"`
	// Human-readable detail.
	// example: serving via serverless fallback
	Message string `json:"message,omitempty" example:"serving via serverless fallback"`
}

// EnsureTrainingResponse is returned by POST /v1/training/ensure.
type EnsureTrainingResponse struct {
	// True when the training workload now owns the GPU.
	// example: true
	Success bool `json:"success" example:"true"`
	// On failure, identifies the failing step (instance not ready, GPU
	// occupied, eviction failed).
	Message string `json:"message,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: gpu busy: eviction of inference failed
	Error string `json:"error" example:"gpu busy: eviction of inference failed"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
}
