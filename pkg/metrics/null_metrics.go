package metrics

import "time"

// NullMetrics is a no-op Collector used when the metrics endpoint is
// disabled and as the default for managers built without one
type NullMetrics struct{}

// NewNullMetrics creates a no-op collector
func NewNullMetrics() *NullMetrics {
	return &NullMetrics{}
}

// IncrementConnects does nothing
func (n *NullMetrics) IncrementConnects(device string) {}

// IncrementConnectErrors does nothing
func (n *NullMetrics) IncrementConnectErrors(device string) {}

// IncrementSectionReads does nothing
func (n *NullMetrics) IncrementSectionReads(device string) {}

// IncrementSectionErrors does nothing
func (n *NullMetrics) IncrementSectionErrors(device string) {}

// SetDeviceUp does nothing
func (n *NullMetrics) SetDeviceUp(device string, up bool) {}

// ObserveReadDuration does nothing
func (n *NullMetrics) ObserveReadDuration(duration time.Duration) {}
