package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRegistration(t *testing.T) {
	before := testutil.ToFloat64(RegistrationsTotal.WithLabelValues(OutcomeEventFull))
	RecordRegistration(OutcomeEventFull)
	after := testutil.ToFloat64(RegistrationsTotal.WithLabelValues(OutcomeEventFull))
	assert.Equal(t, before+1, after)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/events/{id}", "418")
	before := testutil.ToFloat64(counter)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/events/abc", nil))

	require.Equal(t, http.StatusTeapot, res.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRegistration(OutcomeRegistered)

	res := httptest.NewRecorder()
	Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, res.Code)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "eventreg_event_registrations_total")
}
