package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gpud/internal/arbiter"
	"gpud/internal/health"
	"gpud/internal/idle"
	"gpud/internal/lifecycle"
	"gpud/pkg/types"
)

// ModelLoader warms a workload's model on the instance after admission.
// Implemented by modelapi.Client; nil disables warming.
type ModelLoader interface {
	LoadModel(ctx context.Context, workload string) error
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultTrainReadyWait    = 2 * time.Minute
	defaultReadyPollInterval = 2 * time.Second
	defaultIdleWindow        = 15 * time.Minute
	defaultStopTimeout       = 30 * time.Second
)

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	// TrainReadyWait bounds how long a training admission waits for the
	// instance to become ready.
	TrainReadyWait time.Duration
	// ReadyPollInterval is the cadence of that bounded wait.
	ReadyPollInterval time.Duration
	// IdleWindow is the inactivity period before an automatic shutdown.
	IdleWindow time.Duration
	// StopTimeout bounds the stop command issued by the idle scheduler.
	StopTimeout time.Duration
	// WarmTimeout bounds the best-effort model warm after admission.
	WarmTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TrainReadyWait <= 0 {
		c.TrainReadyWait = defaultTrainReadyWait
	}
	if c.ReadyPollInterval <= 0 {
		c.ReadyPollInterval = defaultReadyPollInterval
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = defaultIdleWindow
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.WarmTimeout <= 0 {
		c.WarmTimeout = defaultStopTimeout
	}
	return c
}

// Orchestrator composes the four components into the operations the route
// layer calls. lc may be nil when no self-managed instance is configured;
// inference then relies entirely on the serverless fallback and training is
// refused with a configuration error.
type Orchestrator struct {
	lc     *lifecycle.Controller
	hm     *health.Monitor
	arb    *arbiter.Arbiter
	idle   *idle.Scheduler
	loader ModelLoader

	cfg       Config
	pub       EventPublisher
	log       zerolog.Logger
	startTime time.Time
}

// New wires the components together: the arbiter guards instance stops, and
// the idle scheduler arms only while the instance is ready and no training
// job holds the GPU.
func New(cfg Config, lc *lifecycle.Controller, hm *health.Monitor, arb *arbiter.Arbiter, loader ModelLoader, log zerolog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		lc:        lc,
		hm:        hm,
		arb:       arb,
		loader:    loader,
		cfg:       cfg,
		pub:       noopPublisher{},
		log:       log.With().Str("component", "orchestrator").Logger(),
		startTime: time.Now(),
	}
	if lc != nil {
		lc.SetStopGuard(arb.TrainingActive)
		o.idle = idle.New(cfg.IdleWindow, cfg.StopTimeout,
			func() bool { return lc.Ready() && !arb.TrainingActive() },
			lc.Stop, log)
	}
	return o
}

// SetPublisher installs an event publisher (default drops events).
func (o *Orchestrator) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	o.pub = p
}

// EnsureReadyForInference makes some backend able to serve a segmentation
// request. When the serverless fallback is healthy and the instance is not
// ready, it answers immediately without touching the instance. Otherwise it
// starts the instance if needed and admits the inference workload to the
// GPU.
func (o *Orchestrator) EnsureReadyForInference(ctx context.Context) (types.EnsureInferenceResponse, error) {
	var state lifecycle.State = lifecycle.StateStopped
	if o.lc != nil {
		state, _, _ = o.lc.State()
	}

	if state != lifecycle.StateReady {
		o.hm.Refresh(ctx, health.BackendServerless)
		if o.hm.IsAvailable(health.BackendServerless) {
			o.pub.Publish(Event{Name: "inference_fallback"})
			o.noteActivity()
			return types.EnsureInferenceResponse{
				Ready:   true,
				Backend: health.BackendServerless,
				Message: "serving via serverless fallback",
			}, nil
		}
	}

	if o.lc == nil {
		return types.EnsureInferenceResponse{}, ErrConfigMissing("no instance configured and serverless backend unavailable")
	}

	res, err := o.lc.Start(ctx)
	if err != nil {
		return types.EnsureInferenceResponse{}, ErrControlPlane("start", err)
	}
	if !res.Ready {
		return types.EnsureInferenceResponse{Starting: res.Starting, Message: res.Message}, nil
	}

	acq := o.arb.Acquire(ctx, arbiter.WorkloadInference)
	if !acq.Granted {
		return types.EnsureInferenceResponse{}, ErrGPUBusy(acq.Message)
	}
	if acq.Evicted {
		o.pub.Publish(Event{Name: "gpu_evicted", Fields: map[string]any{"admitted": "inference"}})
	}
	o.warmModel(ctx, arbiter.WorkloadInference)
	o.noteActivity()
	o.pub.Publish(Event{Name: "inference_ready", Fields: map[string]any{"backend": health.BackendInstance}})
	return types.EnsureInferenceResponse{
		Ready:   true,
		Backend: health.BackendInstance,
		Message: "instance ready",
	}, nil
}

// EnsureGPUAvailableForTraining admits the training workload. Training only
// runs on the self-managed instance, never on the serverless backend. The
// instance is started if needed, waited on with a bounded poll, and the GPU
// acquired with eviction of a resident inference model if necessary. Every
// failure identifies the failing step.
func (o *Orchestrator) EnsureGPUAvailableForTraining(ctx context.Context) (types.EnsureTrainingResponse, error) {
	if o.lc == nil {
		return types.EnsureTrainingResponse{}, ErrConfigMissing("training requires the self-managed instance; none is configured")
	}

	res, err := o.lc.Start(ctx)
	if err != nil {
		return types.EnsureTrainingResponse{}, ErrControlPlane("start", err)
	}
	if !res.Ready {
		if err := o.waitReady(ctx); err != nil {
			return types.EnsureTrainingResponse{}, err
		}
	}

	acq := o.arb.Acquire(ctx, arbiter.WorkloadTraining)
	if !acq.Granted {
		return types.EnsureTrainingResponse{}, ErrGPUBusy(acq.Message)
	}
	if acq.Evicted {
		o.pub.Publish(Event{Name: "gpu_evicted", Fields: map[string]any{"admitted": "training"}})
	}
	o.noteActivity()
	o.pub.Publish(Event{Name: "training_admitted"})
	return types.EnsureTrainingResponse{Success: true, Message: "GPU acquired for training"}, nil
}

// waitReady polls instance readiness until it is ready, errors out, or the
// bounded wait expires. Callers surface the timeout as a failed
// precondition; they never silently proceed.
func (o *Orchestrator) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(o.cfg.TrainReadyWait)
	for {
		state := o.lc.PollReadiness(ctx)
		switch state {
		case lifecycle.StateReady:
			return nil
		case lifecycle.StateError:
			_, _, lastErr := o.lc.State()
			return ErrInstanceUnavailable("instance error: " + lastErr)
		case lifecycle.StateStopped:
			// A stop completed while we waited; issue a fresh start.
			if _, err := o.lc.Start(ctx); err != nil {
				return ErrControlPlane("start", err)
			}
		}
		if time.Now().After(deadline) {
			return ErrInstanceUnavailable(fmt.Sprintf("instance not ready within %s", o.cfg.TrainReadyWait))
		}
		select {
		case <-ctx.Done():
			return ErrInstanceUnavailable("wait for instance cancelled: " + ctx.Err().Error())
		case <-time.After(o.cfg.ReadyPollInterval):
		}
	}
}

// ReleaseTraining returns the GPU after a training run completes, fails, or
// is cancelled, so inference can reclaim it without an explicit eviction.
func (o *Orchestrator) ReleaseTraining() {
	o.arb.Release(arbiter.WorkloadTraining)
	o.pub.Publish(Event{Name: "training_released"})
	o.noteActivity()
}

// NoteActivity resets the idle shutdown timer. Exposed for operator
// keep-alives.
func (o *Orchestrator) NoteActivity() { o.noteActivity() }

// Ready reports whether any backend could serve an inference request using
// only recorded (fresh) health state.
func (o *Orchestrator) Ready() bool {
	instanceReady := o.lc != nil && o.lc.Ready()
	return o.hm.Preferred(instanceReady) != ""
}

func (o *Orchestrator) noteActivity() {
	if o.idle != nil {
		o.idle.NoteActivity()
	}
}

// warmModel preloads the segmentation model after admission to cut first-
// click latency. Best effort: a failed warm is logged, not surfaced, since
// the service loads on first request anyway.
func (o *Orchestrator) warmModel(ctx context.Context, w arbiter.Workload) {
	if o.loader == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, o.cfg.WarmTimeout)
	defer cancel()
	if err := o.loader.LoadModel(wctx, string(w)); err != nil {
		o.log.Warn().Err(err).Str("workload", string(w)).Msg("model warm failed")
	}
}
