package orchestrator

// gpuBusyError signals that the GPU is occupied by the other workload and
// eviction did not free it. Maps to 409 at the HTTP layer.
type gpuBusyError struct{ msg string }

func (e gpuBusyError) Error() string { return "gpu busy: " + e.msg }

// ErrGPUBusy constructs a gpuBusyError.
func ErrGPUBusy(msg string) error { return gpuBusyError{msg: msg} }

// IsGPUBusy reports whether err indicates a refused GPU admission.
func IsGPUBusy(err error) bool {
	_, ok := err.(gpuBusyError)
	return ok
}

// instanceUnavailableError signals that the instance failed to reach ready
// within its bound. Maps to 503.
type instanceUnavailableError struct{ msg string }

func (e instanceUnavailableError) Error() string { return e.msg }

// ErrInstanceUnavailable constructs an instanceUnavailableError.
func ErrInstanceUnavailable(msg string) error { return instanceUnavailableError{msg: msg} }

// IsInstanceUnavailable reports whether err indicates a not-ready instance.
func IsInstanceUnavailable(err error) bool {
	_, ok := err.(instanceUnavailableError)
	return ok
}

// configMissingError signals a fatal configuration gap (no instance or
// credentials configured for an operation that needs them). Never retried;
// instance start is never attempted.
type configMissingError struct{ msg string }

func (e configMissingError) Error() string { return e.msg }

// ErrConfigMissing constructs a configMissingError.
func ErrConfigMissing(msg string) error { return configMissingError{msg: msg} }

// IsConfigMissing reports whether err indicates missing configuration.
func IsConfigMissing(err error) bool {
	_, ok := err.(configMissingError)
	return ok
}

// controlPlaneError signals a failed remote start/stop command. Maps to 502.
type controlPlaneError struct {
	op  string
	err error
}

func (e controlPlaneError) Error() string { return "control plane: " + e.op + ": " + e.err.Error() }

func (e controlPlaneError) Unwrap() error { return e.err }

// ErrControlPlane wraps a remote command failure.
func ErrControlPlane(op string, err error) error { return controlPlaneError{op: op, err: err} }

// IsControlPlane reports whether err came from the instance control plane.
func IsControlPlane(err error) bool {
	_, ok := err.(controlPlaneError)
	return ok
}
