package checker

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/lsy88/uptime-sentry/internal/model"
)

func TestProbeHTTPConnectionError(t *testing.T) {
	c := New(nil)
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.com/health",
		httpmock.NewErrorResponder(fmt.Errorf("connection refused")))

	res := c.Probe(context.Background(), httpMonitor("https://api.example.com/health"))

	assert.Equal(t, model.StatusDown, res.Status)
	assert.Contains(t, res.Error, "connection refused")
	assert.Zero(t, res.StatusCode)
}

func TestProbeHTTPRedirectStatus(t *testing.T) {
	c := New(nil)
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://api.example.com/",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "maintenance"))

	m := httpMonitor("https://api.example.com/")
	m.AcceptedStatusCodes = []int{200, 503}

	res := c.Probe(context.Background(), m)
	assert.Equal(t, model.StatusUp, res.Status)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
