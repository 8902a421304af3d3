package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCasesGeneratedTotal(t *testing.T) {
	c := CasesGeneratedTotal.WithLabelValues("Cast")
	before := testutil.ToFloat64(c)
	c.Add(10)
	if got := testutil.ToFloat64(c) - before; got != 10 {
		t.Fatalf("expected +10, got %v", got)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != "ok" || Status(errors.New("x")) != "error" {
		t.Fatal("unexpected status labels")
	}
}

func TestObserveHTTP(t *testing.T) {
	c := HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")
	before := testutil.ToFloat64(c)
	ObserveHTTP("GET", "/healthz", http.StatusOK, 3*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("expected one request recorded, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	CasesLoaded.Set(21)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "goldcase_cases_loaded 21") {
		t.Fatalf("gauge missing from exposition:\n%s", rec.Body.String())
	}
}
