package metrics

import "time"

// Collector abstracts metric recording so the core can run with a real
// exporter, a no-op, or a test double
type Collector interface {
	IncrementConnects(device string)
	IncrementConnectErrors(device string)
	IncrementSectionReads(device string)
	IncrementSectionErrors(device string)
	SetDeviceUp(device string, up bool)
	ObserveReadDuration(duration time.Duration)
}
