package services

import (
	"context"
	"fmt"
	"time"

	"ble-solar-monitor/pkg/device"
	"ble-solar-monitor/pkg/logger"
	"ble-solar-monitor/pkg/recovery"
	"ble-solar-monitor/pkg/registers"
)

// SnapshotPublisher is what the poller needs from the MQTT layer. Nil
// publisher means readings are only cached and logged.
type SnapshotPublisher interface {
	PublishReadings(device string, readings registers.ReadingMap) error
	PublishAvailability(device string, online bool) error
}

// stalenessFactor: a snapshot older than stalenessFactor poll intervals no
// longer counts as fresh for availability
const stalenessFactor = 3

// DevicePoller runs the periodic poll loop for one device: connect if
// needed, read the full section schedule, publish the snapshot. The cadence
// follows the health verdict - sick devices are probed less often - and a
// circuit breaker cools the device off entirely after repeated whole-cycle
// failures.
type DevicePoller struct {
	manager   *device.Manager
	publisher SnapshotPublisher

	interval            time.Duration
	unhealthyMultiplier int

	breaker *recovery.CircuitBreaker
	log     logger.ILogger

	online          bool
	announcedOnce   bool
	successfulPolls int
	failedPolls     int
}

// NewDevicePoller creates a poller for one managed device
func NewDevicePoller(manager *device.Manager, publisher SnapshotPublisher, interval time.Duration, unhealthyMultiplier int) *DevicePoller {
	if unhealthyMultiplier < 1 {
		unhealthyMultiplier = 1
	}

	return &DevicePoller{
		manager:             manager,
		publisher:           publisher,
		interval:            interval,
		unhealthyMultiplier: unhealthyMultiplier,
		breaker: recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{
			Cooldown: interval * time.Duration(unhealthyMultiplier),
		}),
		log: logger.NewStandardLogger(),
	}
}

// Start runs the poll loop until ctx is cancelled, then disconnects the
// device. The first poll runs immediately.
func (p *DevicePoller) Start(ctx context.Context) {
	name := p.manager.Identity().Name
	p.log.LogInfo("poller started for %s (interval %v)", name, p.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.manager.Disconnect()
			p.log.LogInfo("poller stopped for %s", name)
			return

		case <-timer.C:
			err := p.breaker.Call(func() error {
				return p.pollOnce(ctx)
			})
			if err != nil {
				p.failedPolls++
				p.log.LogDebug("poll cycle for %s failed: %v", name, err)
			} else {
				p.successfulPolls++
			}
			p.updateAvailability()
			timer.Reset(p.nextInterval())
		}
	}
}

// pollOnce runs one full cycle: connect if the link is down, read every
// section, publish the result
func (p *DevicePoller) pollOnce(ctx context.Context) error {
	name := p.manager.Identity().Name

	if !p.manager.IsConnected() {
		if err := p.manager.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	readings, err := p.manager.ReadAllSections(ctx)
	if err != nil {
		// A failed read usually means the link is gone; drop it so the
		// next cycle reconnects cleanly
		p.manager.Disconnect()
		return fmt.Errorf("read: %w", err)
	}
	if len(readings) == 0 {
		return fmt.Errorf("read: no sections decoded")
	}

	p.log.LogDebug("device %s: %d fields read", name, len(readings))

	if p.publisher != nil {
		if err := p.publisher.PublishReadings(name, readings); err != nil {
			p.log.LogWarn("device %s: publish failed: %v", name, err)
		}
	}
	return nil
}

// updateAvailability publishes online/offline once per edge, driven by the
// health verdict and the snapshot's staleness
func (p *DevicePoller) updateAvailability() {
	name := p.manager.Identity().Name

	_, lastUpdate := p.manager.Data()
	fresh := !lastUpdate.IsZero() && time.Since(lastUpdate) < p.interval*stalenessFactor*time.Duration(p.unhealthyMultiplier)
	online := p.manager.Health().IsHealthy() && fresh

	if p.announcedOnce && online == p.online {
		return
	}
	p.online = online
	p.announcedOnce = true

	if online {
		p.log.LogInfo("device %s is online", name)
	} else {
		report := p.manager.HealthReport()
		p.log.LogWarn("device %s is offline (success rate %.2f, %d consecutive failures)",
			name, report.SuccessRate, report.ConsecutiveFailures)
	}

	if p.publisher != nil {
		if err := p.publisher.PublishAvailability(name, online); err != nil {
			p.log.LogWarn("device %s: availability publish failed: %v", name, err)
		}
	}
}

// nextInterval stretches the poll cadence for unhealthy devices
func (p *DevicePoller) nextInterval() time.Duration {
	if p.manager.Health().IsHealthy() {
		return p.interval
	}
	return p.interval * time.Duration(p.unhealthyMultiplier)
}

// Stats returns the poll counters, for the shutdown summary
func (p *DevicePoller) Stats() (successful, failed int) {
	return p.successfulPolls, p.failedPolls
}
