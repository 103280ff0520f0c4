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

func TestRecordersUpdateCollectors(t *testing.T) {
	m := New()

	m.RecordRPCCall("eth_call", 20*time.Millisecond, nil)
	m.RecordRPCCall("eth_call", 20*time.Millisecond, errors.New("boom"))
	m.RecordMetadataLookup("fetched")
	m.RecordIndexRefresh(7, nil)
	m.RecordField("surplus", errors.New("reverted"))
	m.RecordTx("pay", "built")

	if got := testutil.ToFloat64(m.rpcCalls.WithLabelValues("eth_call", "error")); got != 1 {
		t.Errorf("rpc error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.indexProjects); got != 7 {
		t.Errorf("index projects = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.fieldResolutions.WithLabelValues("surplus", "unresolved")); got != 1 {
		t.Errorf("unresolved surplus = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRPCCall("eth_call", time.Millisecond, nil)
	m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
	m.IncrementInFlight()
	m.DecrementInFlight()
	m.RecordField("owner", nil)
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/p/{projectId}", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "juicescan_http_requests_total") {
		t.Fatalf("metrics output missing http counter")
	}
}
