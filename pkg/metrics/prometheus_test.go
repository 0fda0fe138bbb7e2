package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetMetricsTextOutput(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementConnects("garage")
	pm.IncrementConnects("garage")
	pm.IncrementConnectErrors("garage")
	pm.IncrementSectionReads("garage")
	pm.IncrementSectionErrors("shed")
	pm.SetDeviceUp("garage", true)
	pm.SetDeviceUp("shed", false)
	pm.ObserveReadDuration(100 * time.Millisecond)
	pm.ObserveReadDuration(300 * time.Millisecond)

	text := pm.GetMetricsText()

	for _, want := range []string{
		`ble_connects_total{device="garage"} 2`,
		`ble_connect_errors_total{device="garage"} 1`,
		`section_reads_total{device="garage"} 1`,
		`section_errors_total{device="shed"} 1`,
		`device_up{device="garage"} 1`,
		`device_up{device="shed"} 0`,
		`read_duration_seconds 0.200000`,
		`read_duration_count 2`,
		"# TYPE ble_connects_total counter",
		"# TYPE device_up gauge",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics text missing %q", want)
		}
	}
}

func TestServeHTTPContentType(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.IncrementConnects("garage")

	rec := httptest.NewRecorder()
	pm.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `ble_connects_total{device="garage"} 1`) {
		t.Error("body missing recorded counter")
	}
}

func TestNullMetricsIsSafeEverywhere(t *testing.T) {
	var c Collector = NewNullMetrics()
	c.IncrementConnects("x")
	c.IncrementConnectErrors("x")
	c.IncrementSectionReads("x")
	c.IncrementSectionErrors("x")
	c.SetDeviceUp("x", true)
	c.ObserveReadDuration(time.Second)
}
