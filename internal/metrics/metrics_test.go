package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/newsletter/internal/metrics"
)

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.EventReceived("newsletter_subscribe")
	m.EventReceived("newsletter_subscribe")
	m.EventRejected("trigger_newsletter", metrics.ReasonUnauthorized)
	m.Outbound("forwarded")
	m.SetSubscribers(4)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ReceivedCounter("newsletter_subscribe")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RejectedCounter("trigger_newsletter", metrics.ReasonUnauthorized)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OutboundCounter("forwarded")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.SubscribersGauge()), 0)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.EventReceived("x")
		m.EventRejected("x", metrics.ReasonValidation)
		m.Outbound("captured")
		m.SetSubscribers(1)
	})
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.EventReceived("newsletter_subscribe")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `newsletter_events_received_total{event="newsletter_subscribe"} 1`)
}
