package health

import (
	"sync"
	"time"
)

// Health thresholds. Rates are compared strictly: rate must exceed the
// threshold (>, not >=) and consecutive failures must stay strictly below
// the limit.
const (
	ConnectionRateThreshold = 0.5
	DataRateThreshold       = 0.5
	MaxConsecutiveFailures  = 5

	// recentCapacity bounds the rolling error and duration lists
	recentCapacity = 10
)

// Tracker records connection and data-retrieval outcomes for one device and
// derives the health verdict consumed by the retry policy and the polling
// scheduler. One tracker is owned by exactly one connection manager; it is
// never shared across devices.
type Tracker struct {
	mu sync.RWMutex

	totalAttempts       int
	successfulAttempts  int
	consecutiveFailures int

	totalReads      int
	successfulReads int

	lastSuccess     time.Time
	recentErrors    []string
	recentDurations []time.Duration
}

// Report is the snapshot handed outward to the host layer
type Report struct {
	SuccessRate         float64
	DataSuccessRate     float64
	ConsecutiveFailures int
	TotalAttempts       int
	LastSuccess         time.Time
	IsHealthy           bool
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		recentErrors:    make([]string, 0, recentCapacity),
		recentDurations: make([]time.Duration, 0, recentCapacity),
	}
}

// RecordAttempt records one connection attempt outcome. A success resets the
// consecutive-failure counter; a failure increments it and appends the error
// to the bounded recent-error list, evicting the oldest entry past capacity.
func (t *Tracker) RecordAttempt(success bool, duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalAttempts++
	t.recentDurations = appendBounded(t.recentDurations, duration)

	if success {
		t.successfulAttempts++
		t.consecutiveFailures = 0
		t.lastSuccess = time.Now()
		return
	}

	t.consecutiveFailures++
	if err != nil {
		t.recentErrors = appendBounded(t.recentErrors, err.Error())
	}
}

// RecordRead records one data-retrieval outcome. Connectivity and data
// health are correlated but distinct signals: a device can accept
// connections yet return garbage frames.
func (t *Tracker) RecordRead(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalReads++
	if success {
		t.successfulReads++
	}
}

// SuccessRate returns the fraction of successful connection attempts
func (t *Tracker) SuccessRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successRateLocked()
}

func (t *Tracker) successRateLocked() float64 {
	if t.totalAttempts == 0 {
		return 0
	}
	return float64(t.successfulAttempts) / float64(t.totalAttempts)
}

// DataSuccessRate returns the fraction of successful data reads
func (t *Tracker) DataSuccessRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dataRateLocked()
}

func (t *Tracker) dataRateLocked() float64 {
	if t.totalReads == 0 {
		return 0
	}
	return float64(t.successfulReads) / float64(t.totalReads)
}

// IsHealthy reports the combined verdict: connection success rate above its
// threshold, consecutive failures below the limit and, once any reads have
// been tracked, data success rate above its own threshold. A tracker with
// no recorded attempts is healthy; nothing is known against the device yet.
func (t *Tracker) IsHealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isHealthyLocked()
}

func (t *Tracker) isHealthyLocked() bool {
	if t.totalAttempts == 0 {
		return true
	}
	if t.successRateLocked() <= ConnectionRateThreshold {
		return false
	}
	if t.consecutiveFailures >= MaxConsecutiveFailures {
		return false
	}
	if t.totalReads > 0 && t.dataRateLocked() <= DataRateThreshold {
		return false
	}
	return true
}

// ConsecutiveFailures returns the current run of failed attempts
func (t *Tracker) ConsecutiveFailures() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.consecutiveFailures
}

// TotalAttempts returns the total number of recorded connection attempts
func (t *Tracker) TotalAttempts() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalAttempts
}

// LastSuccess returns the time of the last successful attempt
func (t *Tracker) LastSuccess() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSuccess
}

// RecentErrors returns a copy of the bounded recent-error list, oldest first
func (t *Tracker) RecentErrors() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.recentErrors))
	copy(out, t.recentErrors)
	return out
}

// RecentDurations returns a copy of the bounded recent-duration list
func (t *Tracker) RecentDurations() []time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]time.Duration, len(t.recentDurations))
	copy(out, t.recentDurations)
	return out
}

// Report returns a consistent snapshot of all derived health figures
func (t *Tracker) Report() Report {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Report{
		SuccessRate:         t.successRateLocked(),
		DataSuccessRate:     t.dataRateLocked(),
		ConsecutiveFailures: t.consecutiveFailures,
		TotalAttempts:       t.totalAttempts,
		LastSuccess:         t.lastSuccess,
		IsHealthy:           t.isHealthyLocked(),
	}
}

func appendBounded[T any](list []T, v T) []T {
	list = append(list, v)
	if len(list) > recentCapacity {
		list = list[1:]
	}
	return list
}
