package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ble-solar-monitor/pkg/errors"
	"ble-solar-monitor/pkg/health"
	"ble-solar-monitor/pkg/logger"
	"ble-solar-monitor/pkg/metrics"
	"ble-solar-monitor/pkg/protocol"
	"ble-solar-monitor/pkg/recovery"
	"ble-solar-monitor/pkg/registers"
)

// Transport is the link the manager drives: a write endpoint for command
// frames and ACKs, and a channel of raw notification chunks. pkg/ble
// provides the GATT implementation; tests provide mocks.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Write(ctx context.Context, data []byte) error
	Notifications() <-chan []byte
	IsConnected() bool
}

// Identity names one monitored device. Immutable for the lifetime of the
// manager.
type Identity struct {
	Address string
	Name    string
}

// Options is the timeout/retry surface of one manager
type Options struct {
	ConnectTimeout time.Duration
	SectionTimeout time.Duration
	SettleDelay    time.Duration
	Retry          recovery.RetryPolicy

	// DeviceID is the expected leading byte of response frames; zero means
	// the broadcast id
	DeviceID byte

	Metrics metrics.Collector
}

// Manager owns the transport for one device: connect/disconnect lifecycle
// with retry and backoff, sequential section reads with per-section
// timeouts, and the health telemetry both of those feed.
//
// One manager per device, driven from a single goroutine. Only the cached
// snapshot is safe to read concurrently.
type Manager struct {
	identity  Identity
	transport Transport
	sections  []registers.Section
	opts      Options

	tracker   *health.Tracker
	assembler *protocol.Assembler
	log       logger.ILogger

	mu         sync.RWMutex
	snapshot   registers.ReadingMap
	lastUpdate time.Time
}

// NewManager creates a manager for one device. The section schedule is
// selected once, at setup time, from the device family.
func NewManager(identity Identity, transport Transport, sections []registers.Section, opts Options) *Manager {
	if opts.DeviceID == 0 {
		opts.DeviceID = protocol.BroadcastID
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNullMetrics()
	}

	return &Manager{
		identity:  identity,
		transport: transport,
		sections:  sections,
		opts:      opts,
		tracker:   health.NewTracker(),
		assembler: protocol.NewAssembler(),
		log:       logger.NewStandardLogger(),
	}
}

// Connect opens the transport, retrying transient failures with capped
// exponential backoff. A definitive not-found failure ends the attempt
// window immediately: no number of retries will find a device that is not
// advertising. Every attempt, either way, lands in the health tracker.
func (m *Manager) Connect(ctx context.Context) error {
	return m.opts.Retry.Run(ctx, m.connectOnce)
}

func (m *Manager) connectOnce(ctx context.Context) error {
	start := time.Now()

	connectCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	err := m.transport.Connect(connectCtx)
	cancel()

	// Some devices accept the raw connection but drop traffic sent before
	// the link settles
	if err == nil && m.opts.SettleDelay > 0 {
		select {
		case <-time.After(m.opts.SettleDelay):
		case <-ctx.Done():
			_ = m.transport.Disconnect()
			err = ctx.Err()
		}
	}

	duration := time.Since(start)
	m.tracker.RecordAttempt(err == nil, duration, err)
	m.opts.Metrics.IncrementConnects(m.identity.Name)
	if err != nil {
		m.opts.Metrics.IncrementConnectErrors(m.identity.Name)
		m.opts.Metrics.SetDeviceUp(m.identity.Name, false)
		m.log.LogWarn("device %s: connect attempt failed after %v: %v", m.identity.Name, duration.Round(time.Millisecond), err)
		return err
	}

	m.opts.Metrics.SetDeviceUp(m.identity.Name, true)
	m.log.LogDebug("device %s: connected in %v", m.identity.Name, duration.Round(time.Millisecond))
	return nil
}

// ReadAllSections polls the device's register schedule sequentially - the
// device processes one outstanding command at a time, so sections are never
// read concurrently. A failed section is logged and skipped; the remaining
// sections still run. Results merge left-to-right, so a later section's
// field overwrites an earlier homonymous one.
func (m *Manager) ReadAllSections(ctx context.Context) (registers.ReadingMap, error) {
	if !m.transport.IsConnected() {
		return nil, fmt.Errorf("device %s: not connected", m.identity.Name)
	}

	start := time.Now()
	combined := make(registers.ReadingMap)

	for _, section := range m.sections {
		if err := ctx.Err(); err != nil {
			m.tracker.RecordRead(false)
			return nil, err
		}

		readings, err := m.readSection(ctx, section)
		if err != nil {
			// Cancellation aborts the whole pass; a section failure only
			// skips that section
			if ctx.Err() != nil {
				m.tracker.RecordRead(false)
				return nil, ctx.Err()
			}
			m.opts.Metrics.IncrementSectionErrors(m.identity.Name)
			m.log.LogWarn("device %s: section %s skipped: %v", m.identity.Name, section.Name, err)
			continue
		}
		m.opts.Metrics.IncrementSectionReads(m.identity.Name)

		if len(readings) == 0 {
			m.log.LogDebug("device %s: section %s: %v", m.identity.Name, section.Name, errors.ErrEmptySection)
			continue
		}
		combined.Merge(readings)
	}

	success := len(combined) > 0
	m.tracker.RecordRead(success)
	m.opts.Metrics.ObserveReadDuration(time.Since(start))

	if success {
		m.mu.Lock()
		m.snapshot = combined
		m.lastUpdate = time.Now()
		m.mu.Unlock()
	}

	return combined, nil
}

// readSection runs one command/response exchange: reset the assembler, send
// the read command, accumulate notification chunks until the frame
// completes or the per-section timeout fires, ACK the frame, validate and
// decode it.
func (m *Manager) readSection(ctx context.Context, section registers.Section) (registers.ReadingMap, error) {
	notifications := m.transport.Notifications()
	if notifications == nil {
		return nil, fmt.Errorf("no notification subscription")
	}

	// A stale partial buffer from the previous operation must never leak
	// into this one
	m.drain(notifications)
	m.assembler.Reset()

	command := protocol.BuildReadCommand(section.StartRegister, section.WordCount)
	if err := m.transport.Write(ctx, command); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	timeout := time.NewTimer(m.opts.SectionTimeout)
	defer timeout.Stop()

	for {
		select {
		case chunk, ok := <-notifications:
			if !ok {
				return nil, fmt.Errorf("notification channel closed")
			}
			if !m.assembler.Feed(chunk) {
				continue
			}

			frame := m.assembler.Frame()

			// Required by the device protocol: without this ACK many
			// families stop notifying for the rest of the connection
			if err := m.transport.Write(ctx, protocol.AckMessage(frame[0])); err != nil {
				m.log.LogWarn("device %s: ack write failed: %v", m.identity.Name, err)
			}

			payload, err := protocol.ParseResponse(frame, m.opts.DeviceID)
			if err != nil {
				return nil, err
			}
			return section.Decode(payload), nil

		case <-timeout.C:
			m.assembler.MarkTimedOut()
			return nil, errors.NewProtocolError(errors.Incomplete, "await response",
				fmt.Errorf("%d bytes after %v", m.assembler.Received(), m.opts.SectionTimeout))

		case <-ctx.Done():
			m.assembler.Reset()
			return nil, ctx.Err()
		}
	}
}

// drain discards chunks left over from a previous exchange
func (m *Manager) drain(notifications <-chan []byte) {
	for {
		select {
		case <-notifications:
		default:
			return
		}
	}
}

// Data returns the last successfully combined snapshot without blocking,
// along with the time it was taken. The returned map is a copy.
func (m *Manager) Data() (registers.ReadingMap, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return nil, time.Time{}
	}
	out := make(registers.ReadingMap, len(m.snapshot))
	out.Merge(m.snapshot)
	return out, m.lastUpdate
}

// Disconnect releases the transport and discards any partially received
// assembler state. Idempotent: double-disconnect is safe.
func (m *Manager) Disconnect() {
	_ = m.transport.Disconnect()
	m.assembler.Reset()
	m.opts.Metrics.SetDeviceUp(m.identity.Name, false)
}

// IsConnected reports whether the transport link is open
func (m *Manager) IsConnected() bool {
	return m.transport.IsConnected()
}

// Identity returns the device identity
func (m *Manager) Identity() Identity {
	return m.identity
}

// Health exposes the tracker to the retry policy and polling scheduler.
// This is the only state the core shares outward.
func (m *Manager) Health() *health.Tracker {
	return m.tracker
}

// HealthReport returns the current health snapshot
func (m *Manager) HealthReport() health.Report {
	return m.tracker.Report()
}
