// Package modelapi is the HTTP client for the segmentation service hosted on
// the GPU instance: health, readiness, and model load/unload control.
package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client calls the instance-hosted model service. All methods honor the
// deadline on ctx; the embedded http.Client carries no timeout of its own so
// callers stay in control.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New returns a client for the service at baseURL (scheme://host[:port]).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{},
	}
}

// HealthReport mirrors the service's GET /api/v1/health payload.
type HealthReport struct {
	Available bool   `json:"available"`
	Mode      string `json:"mode"`
	Device    string `json:"device"`
	LatencyMs *int64 `json:"latencyMs"`
}

// Health probes the service health endpoint.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var rep HealthReport
	if err := c.getJSON(ctx, "/api/v1/health", &rep); err != nil {
		return HealthReport{}, err
	}
	return rep, nil
}

// Ready reports whether the service has its model loaded and can serve.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	var rep struct {
		Ready   bool   `json:"ready"`
		Message string `json:"message"`
	}
	if err := c.getJSON(ctx, "/api/v1/ready", &rep); err != nil {
		return false, err
	}
	return rep.Ready, nil
}

// LoadModel asks the service to load the resident model for a workload.
// Used to warm the segmentation model after the GPU is acquired.
func (c *Client) LoadModel(ctx context.Context, workload string) error {
	return c.postJSON(ctx, "/api/v1/model/load", map[string]string{"workload": workload})
}

// UnloadModel asks the service to release GPU memory held by a workload.
// This is the eviction primitive; the call returns only after the service
// confirms the unload or the ctx deadline expires.
func (c *Client) UnloadModel(ctx context.Context, workload string) error {
	return c.postJSON(ctx, "/api/v1/model/unload", map[string]string{"workload": workload})
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpError(path, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// httpError extracts a short error body, if any, for diagnostics.
func httpError(path string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return fmt.Errorf("modelapi: %s returned %d", path, resp.StatusCode)
	}
	return fmt.Errorf("modelapi: %s returned %d: %s", path, resp.StatusCode, msg)
}
