package gpuctl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gpud/pkg/types"
)

// client is a thin HTTP wrapper over the daemon API.
type client struct {
	base string
	hc   *http.Client
}

func newClient(addr string) *client {
	return &client{
		base: strings.TrimRight(addr, "/"),
		hc:   &http.Client{Timeout: 60 * time.Second},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *client) status(out io.Writer) error {
	resp, err := c.hc.Get(c.base + "/v1/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return err
	}
	fmt.Fprintf(out, "instance:  %s\n", st.InstanceState)
	if st.LastError != "" {
		fmt.Fprintf(out, "last err:  %s\n", st.LastError)
	}
	fmt.Fprintf(out, "gpu owner: %s\n", st.GPUOwner)
	fmt.Fprintf(out, "preferred: %s\n", orDash(st.PreferredBackend))
	for _, b := range st.Backends {
		lat := "-"
		if b.LatencyMs != nil {
			lat = fmt.Sprintf("%dms", *b.LatencyMs)
		}
		fmt.Fprintf(out, "backend %-10s available=%v mode=%s latency=%s failures=%d\n",
			b.Name, b.Available, orDash(b.Mode), lat, b.ConsecutiveFailures)
	}
	if st.IdleShutdownAtUnix != 0 {
		fmt.Fprintf(out, "idle stop: %s\n", time.Unix(st.IdleShutdownAtUnix, 0).Format(time.RFC3339))
	}
	fmt.Fprintf(out, "message:   %s\n", st.Message)
	return nil
}

func (c *client) ensureInference(out io.Writer) error {
	resp, err := c.hc.Post(c.base+"/v1/inference/ensure", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var r types.EnsureInferenceResponse
	if err := decodeOrError(resp, &r); err != nil {
		return err
	}
	fmt.Fprintf(out, "ready=%v starting=%v backend=%s %s\n", r.Ready, r.Starting, orDash(r.Backend), r.Message)
	return nil
}

func (c *client) ensureTraining(out io.Writer) error {
	resp, err := c.hc.Post(c.base+"/v1/training/ensure", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var r types.EnsureTrainingResponse
	if err := decodeOrError(resp, &r); err != nil {
		return err
	}
	fmt.Fprintf(out, "success=%v %s\n", r.Success, r.Message)
	return nil
}

func (c *client) releaseTraining(out io.Writer) error {
	resp, err := c.hc.Post(c.base+"/v1/training/release", "application/json", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	fmt.Fprintln(out, "released")
	return nil
}

func (c *client) keepalive(out io.Writer) error {
	resp, err := c.hc.Post(c.base+"/v1/keepalive", "application/json", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	fmt.Fprintln(out, "idle timer reset")
	return nil
}

// decodeOrError decodes the success payload, or surfaces the daemon's JSON
// error for non-2xx responses so the operator sees the real reason.
func decodeOrError(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	// 503 on the inference path still carries the normal payload.
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr types.ErrorResponse
	if err := json.Unmarshal(b, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
	}
	if err := json.Unmarshal(b, out); err == nil {
		return nil
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
