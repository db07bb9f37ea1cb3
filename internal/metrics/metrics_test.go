package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(botCommands.WithLabelValues("help"))
	IncCommand("help")
	assert.Equal(t, before+1, testutil.ToFloat64(botCommands.WithLabelValues("help")))

	before = testutil.ToFloat64(weatherLookups.WithLabelValues("ok"))
	IncWeatherLookup("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(weatherLookups.WithLabelValues("ok")))

	before = testutil.ToFloat64(dashboardDropped)
	IncDashboardDropped()
	assert.Equal(t, before+1, testutil.ToFloat64(dashboardDropped))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("/api/users", "200"))
	IncHTTP("/api/users", http.StatusOK)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/api/users", "200")))

	assert.NotPanics(t, func() {
		IncDashboardEvent("subscribe")
		ObserveWeatherLatency(150 * time.Millisecond)
	})
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	Register()
	IncCommand("start")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "weatherbot_bot_commands_total"))
}
