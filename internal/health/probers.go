package health

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"gpud/internal/modelapi"
)

// ModelServiceProber probes the instance-hosted segmentation service via
// its health endpoint, which reports availability and operating mode.
type ModelServiceProber struct {
	Client *modelapi.Client
}

func (p ModelServiceProber) Probe(ctx context.Context) (ProbeResult, error) {
	rep, err := p.Client.Health(ctx)
	if err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{Available: rep.Available, Mode: rep.Mode}, nil
}

// HTTPProber is a stateless availability probe for the third-party
// serverless backend: any 2xx on the health URL counts as available.
type HTTPProber struct {
	URL string
	// HC defaults to http.DefaultClient; the ctx deadline bounds the call.
	HC *http.Client
}

func (p HTTPProber) Probe(ctx context.Context) (ProbeResult, error) {
	hc := p.HC
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return ProbeResult{}, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return ProbeResult{}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProbeResult{}, fmt.Errorf("health probe %s returned %d", p.URL, resp.StatusCode)
	}
	return ProbeResult{Available: true, Mode: "realtime"}, nil
}
