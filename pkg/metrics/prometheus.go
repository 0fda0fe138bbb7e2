package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// PrometheusMetrics tracks per-device counters in Prometheus text format
type PrometheusMetrics struct {
	connectsTotal      map[string]int64
	connectErrorsTotal map[string]int64
	sectionReadsTotal  map[string]int64
	sectionErrorsTotal map[string]int64
	deviceUp           map[string]int64

	// Simplified histogram: sum and count for average
	readDurationSum   float64
	readDurationCount int64

	mu sync.RWMutex
}

// NewPrometheusMetrics creates a new metrics collector
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		connectsTotal:      make(map[string]int64),
		connectErrorsTotal: make(map[string]int64),
		sectionReadsTotal:  make(map[string]int64),
		sectionErrorsTotal: make(map[string]int64),
		deviceUp:           make(map[string]int64),
	}
}

// IncrementConnects counts one connection attempt
func (pm *PrometheusMetrics) IncrementConnects(device string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.connectsTotal[device]++
}

// IncrementConnectErrors counts one failed connection attempt
func (pm *PrometheusMetrics) IncrementConnectErrors(device string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.connectErrorsTotal[device]++
}

// IncrementSectionReads counts one successfully decoded section
func (pm *PrometheusMetrics) IncrementSectionReads(device string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.sectionReadsTotal[device]++
}

// IncrementSectionErrors counts one skipped section
func (pm *PrometheusMetrics) IncrementSectionErrors(device string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.sectionErrorsTotal[device]++
}

// SetDeviceUp sets the per-device link gauge (1 = connected, 0 = down)
func (pm *PrometheusMetrics) SetDeviceUp(device string, up bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if up {
		pm.deviceUp[device] = 1
	} else {
		pm.deviceUp[device] = 0
	}
}

// ObserveReadDuration records the duration of one full section schedule read
func (pm *PrometheusMetrics) ObserveReadDuration(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.readDurationSum += duration.Seconds()
	pm.readDurationCount++
}

// GetMetricsText returns metrics in Prometheus text format
func (pm *PrometheusMetrics) GetMetricsText() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var b strings.Builder

	writeCounter := func(name, help string, values map[string]int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
		for _, device := range sortedKeys(values) {
			fmt.Fprintf(&b, "%s{device=%q} %d\n", name, device, values[device])
		}
		b.WriteByte('\n')
	}

	writeCounter("ble_connects_total", "Total BLE connection attempts", pm.connectsTotal)
	writeCounter("ble_connect_errors_total", "Total failed BLE connection attempts", pm.connectErrorsTotal)
	writeCounter("section_reads_total", "Total register sections decoded", pm.sectionReadsTotal)
	writeCounter("section_errors_total", "Total register sections skipped", pm.sectionErrorsTotal)

	fmt.Fprintf(&b, "# HELP device_up Current link status per device (1 = connected)\n# TYPE device_up gauge\n")
	for _, device := range sortedKeys(pm.deviceUp) {
		fmt.Fprintf(&b, "device_up{device=%q} %d\n", device, pm.deviceUp[device])
	}
	b.WriteByte('\n')

	var avg float64
	if pm.readDurationCount > 0 {
		avg = pm.readDurationSum / float64(pm.readDurationCount)
	}
	fmt.Fprintf(&b, "# HELP read_duration_seconds Average full-schedule read duration in seconds\n# TYPE read_duration_seconds gauge\nread_duration_seconds %.6f\n", avg)
	fmt.Fprintf(&b, "# HELP read_duration_count Total read duration observations\n# TYPE read_duration_count counter\nread_duration_count %d\n", pm.readDurationCount)

	return b.String()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ServeHTTP implements http.Handler for the /metrics endpoint
func (pm *PrometheusMetrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, pm.GetMetricsText())
}

// StartMetricsServer starts an HTTP server on the given port exposing
// /metrics, with timeouts against slow clients
func (pm *PrometheusMetrics) StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", pm)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return server.ListenAndServe()
}
