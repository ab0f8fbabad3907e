package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lsy88/uptime-sentry/internal/model"
)

// ContainerStater inspects a container's state. Satisfied by the docker
// client; nil means container monitors probe as down.
type ContainerStater interface {
	ContainerState(ctx context.Context, id string) (string, error)
}

// Checker performs one bounded health probe per call and classifies the
// outcome. It never returns a Go error: every failure mode becomes a
// down result with the error field populated. It does not touch storage.
type Checker struct {
	httpClient *http.Client
	docker     ContainerStater
}

func New(docker ContainerStater) *Checker {
	return &Checker{
		// Per-probe deadlines come from the monitor's timeout via context;
		// the client itself carries no global timeout.
		httpClient: &http.Client{},
		docker:     docker,
	}
}

// Probe executes one health check against the monitor, bounded by the
// monitor's timeout.
func (c *Checker) Probe(ctx context.Context, m model.Monitor) model.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout())
	defer cancel()

	switch m.Kind {
	case model.MonitorKindHTTP, model.MonitorKindHTTPS:
		return c.probeHTTP(ctx, m)
	case model.MonitorKindTCP:
		return c.probeTCP(ctx, m)
	case model.MonitorKindPing:
		return c.probeReachability(ctx, m)
	case model.MonitorKindContainer:
		return c.probeContainer(ctx, m)
	default:
		return down(m, 0, fmt.Sprintf("unknown monitor kind %q", m.Kind))
	}
}

func (c *Checker) probeHTTP(ctx context.Context, m model.Monitor) model.ProbeResult {
	method := m.Method
	if method == "" {
		method = http.MethodGet
	}

	var body *strings.Reader
	if m.Body != "" {
		body = strings.NewReader(m.Body)
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, m.URL, body)
	if err != nil {
		return down(m, 0, err.Error())
	}
	for k, v := range m.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return transportFailure(m, latency, err)
	}
	defer resp.Body.Close()

	result := model.ProbeResult{
		MonitorID:  m.ID,
		StatusCode: resp.StatusCode,
		LatencyMs:  int(latency.Milliseconds()),
		CheckedAt:  time.Now().UTC(),
	}

	switch {
	case !m.StatusAccepted(resp.StatusCode):
		result.Status = model.StatusDown
		result.Error = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	case latency > degradedThreshold(m.Timeout()):
		result.Status = model.StatusDegraded
	default:
		result.Status = model.StatusUp
	}
	return result
}

func (c *Checker) probeTCP(ctx context.Context, m model.Monitor) model.ProbeResult {
	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.URL)
	latency := time.Since(start)
	if err != nil {
		return transportFailure(m, latency, err)
	}
	_ = conn.Close()

	return model.ProbeResult{
		MonitorID: m.ID,
		Status:    model.StatusUp,
		LatencyMs: int(latency.Milliseconds()),
		CheckedAt: time.Now().UTC(),
	}
}

// probeReachability approximates ping with a HEAD request. Raw ICMP
// needs elevated privileges, so "ping" means "the endpoint answers".
func (c *Checker) probeReachability(ctx context.Context, m model.Monitor) model.ProbeResult {
	target := m.URL
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return down(m, 0, err.Error())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return transportFailure(m, latency, err)
	}
	_ = resp.Body.Close()

	return model.ProbeResult{
		MonitorID:  m.ID,
		Status:     model.StatusUp,
		StatusCode: resp.StatusCode,
		LatencyMs:  int(latency.Milliseconds()),
		CheckedAt:  time.Now().UTC(),
	}
}

func (c *Checker) probeContainer(ctx context.Context, m model.Monitor) model.ProbeResult {
	if c.docker == nil {
		return down(m, 0, "docker unavailable")
	}

	start := time.Now()
	state, err := c.docker.ContainerState(ctx, m.URL)
	latency := time.Since(start)
	if err != nil {
		return transportFailure(m, latency, err)
	}
	if state != "running" {
		return down(m, int(latency.Milliseconds()), fmt.Sprintf("container state %s", state))
	}

	return model.ProbeResult{
		MonitorID: m.ID,
		Status:    model.StatusUp,
		LatencyMs: int(latency.Milliseconds()),
		CheckedAt: time.Now().UTC(),
	}
}

// degradedThreshold is 80% of the probe timeout: successful but that
// slow counts as degraded, not up.
func degradedThreshold(timeout time.Duration) time.Duration {
	return timeout * 8 / 10
}

func transportFailure(m model.Monitor, latency time.Duration, err error) model.ProbeResult {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		msg = fmt.Sprintf("timeout after %dms", m.TimeoutMs)
	}
	return down(m, int(latency.Milliseconds()), msg)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func down(m model.Monitor, latencyMs int, msg string) model.ProbeResult {
	return model.ProbeResult{
		MonitorID: m.ID,
		Status:    model.StatusDown,
		LatencyMs: latencyMs,
		Error:     msg,
		CheckedAt: time.Now().UTC(),
	}
}
