package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"graphql endpoint", "https://API.github.com/graphql", "api.github.com"},
		{"no scheme", "api.github.com/user", "api.github.com"},
		{"host with port", "localhost:8080", "localhost"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeHost(tc.input))
		})
	}
}

func TestObserveCounters(t *testing.T) {
	beforeSubmit := testutil.ToFloat64(submissionsTotal.WithLabelValues("started"))
	ObserveSubmission("started")
	require.InDelta(t, beforeSubmit+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("started")), 0.001)

	beforeTask := testutil.ToFloat64(tasksTotal.WithLabelValues("succeeded"))
	ObserveTask("succeeded", 2*time.Second)
	require.InDelta(t, beforeTask+1, testutil.ToFloat64(tasksTotal.WithLabelValues("succeeded")), 0.001)

	beforeOrphans := testutil.ToFloat64(orphansRemovedTotal)
	ObserveOrphansRemoved(3)
	ObserveOrphansRemoved(0)
	require.InDelta(t, beforeOrphans+3, testutil.ToFloat64(orphansRemovedTotal), 0.001)

	beforeStar := testutil.ToFloat64(starsTotal.WithLabelValues("failed"))
	ObserveStar("failed")
	require.InDelta(t, beforeStar+1, testutil.ToFloat64(starsTotal.WithLabelValues("failed")), 0.001)

	beforeActive := testutil.ToFloat64(activeTasks)
	IncActiveTasks()
	require.InDelta(t, beforeActive+1, testutil.ToFloat64(activeTasks), 0.001)
	DecActiveTasks()
	require.InDelta(t, beforeActive, testutil.ToFloat64(activeTasks), 0.001)

	ObserveRateLimitDelay("api.github.com", 150*time.Millisecond)
	require.Positive(t, testutil.CollectAndCount(rateLimitDelaySeconds))
}

func TestMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/profiles/{username}/{year}/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	beforeMissing := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/profiles/octocat/2024/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.InDelta(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")), 0.001)
	require.InDelta(t, beforeMissing+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")), 0.001)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}
