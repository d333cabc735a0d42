package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gpud/internal/orchestrator"
	"gpud/pkg/types"
)

// fakeService returns scripted responses.
type fakeService struct {
	inferenceResp types.EnsureInferenceResponse
	inferenceErr  error
	trainingResp  types.EnsureTrainingResponse
	trainingErr   error
	statusResp    types.StatusResponse
	ready         bool

	releases   int
	keepalives int
}

func (f *fakeService) EnsureReadyForInference(ctx context.Context) (types.EnsureInferenceResponse, error) {
	return f.inferenceResp, f.inferenceErr
}

func (f *fakeService) EnsureGPUAvailableForTraining(ctx context.Context) (types.EnsureTrainingResponse, error) {
	return f.trainingResp, f.trainingErr
}

func (f *fakeService) ReleaseTraining() { f.releases++ }

func (f *fakeService) NoteActivity() { f.keepalives++ }

func (f *fakeService) Status(ctx context.Context) types.StatusResponse { return f.statusResp }

func (f *fakeService) Ready() bool { return f.ready }

func newTestServer(svc Service) *httptest.Server {
	return httptest.NewServer(NewMux(svc, Options{}))
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestEnsureInferenceReady(t *testing.T) {
	svc := &fakeService{inferenceResp: types.EnsureInferenceResponse{Ready: true, Backend: "instance", Message: "instance ready"}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv.URL+"/v1/inference/ensure")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body types.EnsureInferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Ready || body.Backend != "instance" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestEnsureInferenceStartingIs503WithPayload(t *testing.T) {
	svc := &fakeService{inferenceResp: types.EnsureInferenceResponse{Starting: true, Message: "instance start requested"}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv.URL+"/v1/inference/ensure")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var body types.EnsureInferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Starting {
		t.Fatalf("body lost the starting flag: %+v", body)
	}
}

func TestEnsureTrainingErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"gpu busy", orchestrator.ErrGPUBusy("eviction of inference failed"), http.StatusConflict},
		{"instance unavailable", orchestrator.ErrInstanceUnavailable("instance not ready within 2m0s"), http.StatusServiceUnavailable},
		{"control plane", orchestrator.ErrControlPlane("start", context.DeadlineExceeded), http.StatusBadGateway},
		{"config missing", orchestrator.ErrConfigMissing("no instance configured"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{trainingErr: tc.err}
			srv := newTestServer(svc)
			defer srv.Close()

			resp := post(t, srv.URL+"/v1/training/ensure")
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			var body types.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" || body.Code != tc.want {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestEnsureTrainingSuccess(t *testing.T) {
	svc := &fakeService{trainingResp: types.EnsureTrainingResponse{Success: true, Message: "GPU acquired for training"}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv.URL+"/v1/training/ensure")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body types.EnsureTrainingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReleaseAndKeepaliveAre204(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv.URL+"/v1/training/release")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("release status = %d", resp.StatusCode)
	}
	resp = post(t, srv.URL+"/v1/keepalive")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("keepalive status = %d", resp.StatusCode)
	}
	if svc.releases != 1 || svc.keepalives != 1 {
		t.Fatalf("releases=%d keepalives=%d", svc.releases, svc.keepalives)
	}
}

func TestStatusEndpoint(t *testing.T) {
	svc := &fakeService{statusResp: types.StatusResponse{
		InstanceState:    "ready",
		GPUOwner:         "inference",
		PreferredBackend: "instance",
		Message:          "instance ready, inference model resident",
		Backends: []types.BackendStatus{
			{Name: "instance", Available: true, Mode: "realtime"},
			{Name: "serverless", Available: false},
		},
	}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	var body types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.InstanceState != "ready" || len(body.Backends) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when nothing can serve", resp.StatusCode)
	}

	svc.ready = true
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(&fakeService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
}
