package checker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsy88/uptime-sentry/internal/model"
)

func httpMonitor(url string) model.Monitor {
	return model.Monitor{
		ID:              "m1",
		Name:            "test",
		URL:             url,
		Kind:            model.MonitorKindHTTP,
		IntervalSeconds: 60,
		TimeoutMs:       2000,
		Active:          true,
	}
}

func TestProbeHTTPUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(nil)
	res := c.Probe(context.Background(), httpMonitor(srv.URL))

	assert.Equal(t, model.StatusUp, res.Status)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Error)
	assert.False(t, res.CheckedAt.IsZero())
}

func TestProbeHTTPUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(nil)
	res := c.Probe(context.Background(), httpMonitor(srv.URL))

	assert.Equal(t, model.StatusDown, res.Status)
	assert.Equal(t, "unexpected status code 500", res.Error)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestProbeHTTPAcceptedStatusCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	m := httpMonitor(srv.URL)
	m.AcceptedStatusCodes = []int{418}

	c := New(nil)
	res := c.Probe(context.Background(), m)
	assert.Equal(t, model.StatusUp, res.Status)

	// the explicit set replaces the 2xx default entirely
	m.AcceptedStatusCodes = []int{301}
	res = c.Probe(context.Background(), m)
	assert.Equal(t, model.StatusDown, res.Status)
	assert.Equal(t, "unexpected status code 418", res.Error)
}

func TestProbeHTTPTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	m := httpMonitor(srv.URL)
	m.TimeoutMs = 50

	c := New(nil)
	res := c.Probe(context.Background(), m)

	assert.Equal(t, model.StatusDown, res.Status)
	assert.Equal(t, "timeout after 50ms", res.Error)
}

func TestProbeHTTPDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// beyond 80% of the 200ms timeout but under the deadline
		time.Sleep(170 * time.Millisecond)
	}))
	defer srv.Close()

	m := httpMonitor(srv.URL)
	m.TimeoutMs = 200

	c := New(nil)
	res := c.Probe(context.Background(), m)

	assert.Equal(t, model.StatusDegraded, res.Status)
	assert.Empty(t, res.Error)
}

func TestProbeHTTPSendsHeadersAndBody(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := httpMonitor(srv.URL)
	m.Method = http.MethodPost
	m.Headers = map[string]string{"Authorization": "Bearer token"}
	m.Body = `{"ping":true}`

	c := New(nil)
	res := c.Probe(context.Background(), m)

	assert.Equal(t, model.StatusUp, res.Status)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestProbeTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	m := httpMonitor(ln.Addr().String())
	m.Kind = model.MonitorKindTCP

	c := New(nil)
	res := c.Probe(context.Background(), m)
	assert.Equal(t, model.StatusUp, res.Status)
}

func TestProbeTCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	m := httpMonitor(addr)
	m.Kind = model.MonitorKindTCP

	c := New(nil)
	res := c.Probe(context.Background(), m)
	assert.Equal(t, model.StatusDown, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestProbePingDefaultsScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// strip the scheme: ping targets are host:port
	m := httpMonitor(srv.Listener.Addr().String())
	m.Kind = model.MonitorKindPing

	c := New(nil)
	res := c.Probe(context.Background(), m)
	assert.Equal(t, model.StatusUp, res.Status)
}

type fakeStater struct {
	state string
	err   error
}

func (f fakeStater) ContainerState(ctx context.Context, id string) (string, error) {
	return f.state, f.err
}

func TestProbeContainer(t *testing.T) {
	m := httpMonitor("my-container")
	m.Kind = model.MonitorKindContainer

	res := New(fakeStater{state: "running"}).Probe(context.Background(), m)
	assert.Equal(t, model.StatusUp, res.Status)

	res = New(fakeStater{state: "exited"}).Probe(context.Background(), m)
	assert.Equal(t, model.StatusDown, res.Status)
	assert.Equal(t, "container state exited", res.Error)

	res = New(fakeStater{err: fmt.Errorf("no such container")}).Probe(context.Background(), m)
	assert.Equal(t, model.StatusDown, res.Status)

	res = New(nil).Probe(context.Background(), m)
	assert.Equal(t, model.StatusDown, res.Status)
	assert.Equal(t, "docker unavailable", res.Error)
}

func TestProbeUnknownKind(t *testing.T) {
	m := httpMonitor("http://localhost")
	m.Kind = "carrier-pigeon"

	res := New(nil).Probe(context.Background(), m)
	assert.Equal(t, model.StatusDown, res.Status)
	assert.Contains(t, res.Error, "unknown monitor kind")
}
