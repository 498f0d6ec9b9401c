package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/mw-ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Post("/mw-fail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "201"))
	failBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "502"))

	for _, path := range []string{"/mw-ok", "/mw-fail"} {
		resp, err := http.Post(ts.URL+path, "text/plain", nil)
		if err != nil {
			t.Fatal(err)
		}
		if errInner := resp.Body.Close(); errInner != nil {
			t.Log(errInner)
		}
	}

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "201")); val != okBefore+1 {
		t.Errorf("Expected httpRequestsTotal for POST 201 to be %f, got %f", okBefore+1, val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "502")); val != failBefore+1 {
		t.Errorf("Expected httpRequestsTotal for POST 502 to be %f, got %f", failBefore+1, val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val <= 0 {
		t.Errorf("Expected httpRequestDurationSeconds to be observed, got %d", val)
	}
}

func TestRouteMiddlewareUsesLabelFunc(t *testing.T) {
	Init()
	labels := map[string]string{"/parked": "log_and_park"}
	mw := RouteMiddleware(func(r *http.Request) string { return labels[r.URL.Path] })
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/parked", "/unlabelled"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, path, nil))
	}

	if got := histogramCount(t, "PUT", "log_and_park"); got < 1 {
		t.Errorf("Expected a PUT log_and_park observation, got %d", got)
	}
	if got := histogramCount(t, "PUT", "unknown"); got < 1 {
		t.Errorf("Expected a PUT unknown observation, got %d", got)
	}
}

func histogramCount(t *testing.T, method, route string) uint64 {
	t.Helper()
	obs, err := httpRequestDurationSeconds.GetMetricWithLabelValues(method, route)
	if err != nil {
		t.Fatal(err)
	}
	var m dto.Metric
	if err := obs.(prometheus.Metric).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetHistogram().GetSampleCount()
}
