package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gpud/internal/orchestrator"
	"gpud/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	EnsureReadyForInference(ctx context.Context) (types.EnsureInferenceResponse, error)
	EnsureGPUAvailableForTraining(ctx context.Context) (types.EnsureTrainingResponse, error)
	ReleaseTraining()
	NoteActivity()
	Status(ctx context.Context) types.StatusResponse
	Ready() bool
}

// zlog is an optional structured logger. If unset, handlers stay quiet.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// Options tunes the mux beyond the service itself.
type Options struct {
	// CORSOrigins lists origins allowed by the annotation front-end.
	// Empty disables CORS.
	CORSOrigins []string
}

// NewMux builds the orchestrator's HTTP surface.
func NewMux(svc Service, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// EnsureInference godoc
	// @Summary  Ensure some backend can serve segmentation inference
	// @Produce  json
	// @Success  200 {object} types.EnsureInferenceResponse
	// @Failure  503 {object} types.EnsureInferenceResponse "no backend ready yet"
	// @Router   /v1/inference/ensure [post]
	r.Post("/v1/inference/ensure", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp, err := svc.EnsureReadyForInference(r.Context())
		if err != nil {
			writeError(w, r, "inference ensure", err, start)
			return
		}
		status := http.StatusOK
		if !resp.Ready {
			// Route contract: 503 while nothing can serve; the body still
			// tells the caller whether a start is underway.
			status = http.StatusServiceUnavailable
		}
		logOp(r, "inference ensure", status, start)
		writeJSON(w, status, resp)
	})

	// EnsureTraining godoc
	// @Summary  Acquire the GPU for a training job
	// @Produce  json
	// @Success  200 {object} types.EnsureTrainingResponse
	// @Failure  409 {object} types.ErrorResponse "GPU occupied, eviction failed"
	// @Failure  503 {object} types.ErrorResponse "instance not ready in time"
	// @Router   /v1/training/ensure [post]
	r.Post("/v1/training/ensure", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp, err := svc.EnsureGPUAvailableForTraining(r.Context())
		if err != nil {
			writeError(w, r, "training ensure", err, start)
			return
		}
		logOp(r, "training ensure", http.StatusOK, start)
		writeJSON(w, http.StatusOK, resp)
	})

	// ReleaseTraining godoc
	// @Summary  Release the GPU after a training run (idempotent)
	// @Success  204
	// @Router   /v1/training/release [post]
	r.Post("/v1/training/release", func(w http.ResponseWriter, r *http.Request) {
		svc.ReleaseTraining()
		w.WriteHeader(http.StatusNoContent)
	})

	// Keepalive godoc
	// @Summary  Reset the idle shutdown timer
	// @Success  204
	// @Router   /v1/keepalive [post]
	r.Post("/v1/keepalive", func(w http.ResponseWriter, r *http.Request) {
		svc.NoteActivity()
		w.WriteHeader(http.StatusNoContent)
	})

	// Status godoc
	// @Summary  Aggregated orchestrator status snapshot
	// @Produce  json
	// @Success  200 {object} types.StatusResponse
	// @Router   /v1/status [get]
	r.Get("/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status(r.Context()))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no backend available"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// writeError maps orchestrator failures onto the route contract: 409 for a
// refused GPU admission, 503 for an instance that is not ready in time, 502
// for failed remote control commands, 500 otherwise.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error, start time.Time) {
	status := http.StatusInternalServerError
	switch {
	case orchestrator.IsGPUBusy(err):
		status = http.StatusConflict
	case orchestrator.IsInstanceUnavailable(err):
		status = http.StatusServiceUnavailable
	case orchestrator.IsControlPlane(err):
		status = http.StatusBadGateway
	case orchestrator.IsConfigMissing(err):
		status = http.StatusInternalServerError
	}
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Err(err).Msg(op + " failed")
	}
	writeJSONError(w, status, err.Error())
}

func logOp(r *http.Request, op string, status int, start time.Time) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg(op)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
