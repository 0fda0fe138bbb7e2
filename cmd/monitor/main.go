package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ble-solar-monitor/pkg/ble"
	"ble-solar-monitor/pkg/config"
	"ble-solar-monitor/pkg/device"
	"ble-solar-monitor/pkg/logger"
	"ble-solar-monitor/pkg/metrics"
	"ble-solar-monitor/pkg/mqtt"
	"ble-solar-monitor/pkg/recovery"
	"ble-solar-monitor/pkg/registers"
	"ble-solar-monitor/pkg/services"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.LogError("Configuration error: %v", err)
		os.Exit(1)
	}

	logger.Setup(&cfg.Logging)
	logger.LogInfo("ble-solar-monitor starting with %d device(s)", len(cfg.Devices))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var collector metrics.Collector = metrics.NewNullMetrics()
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics()
		collector = prom
		go func() {
			logger.LogInfo("Metrics endpoint on :%d/metrics", cfg.Metrics.Port)
			if err := prom.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.LogError("Metrics server stopped: %v", err)
			}
		}()
	}

	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher = mqtt.NewPublisher(&cfg.MQTT)
		if err := publisher.Connect(ctx); err != nil {
			logger.LogError("MQTT error: %v", err)
			os.Exit(1)
		}
		defer publisher.Disconnect()
	}

	opts := device.Options{
		ConnectTimeout: cfg.Connection.ConnectTimeout.Std(),
		SectionTimeout: cfg.Connection.SectionTimeout.Std(),
		SettleDelay:    cfg.Connection.SettleDelay.Std(),
		Retry: recovery.RetryPolicy{
			MaxAttempts: cfg.Connection.MaxRetries,
			BackoffBase: cfg.Connection.BackoffBase.Std(),
			BackoffCap:  cfg.Connection.BackoffCap.Std(),
		},
		Metrics: collector,
	}

	var wg sync.WaitGroup
	started := 0

	for id, dev := range cfg.Devices {
		if !dev.IsEnabled() {
			logger.LogInfo("Device %s is disabled, skipping", id)
			continue
		}

		transport, err := ble.NewClient(dev)
		if err != nil {
			logger.LogError("Device %s: %v", id, err)
			os.Exit(1)
		}

		manager := device.NewManager(
			device.Identity{Address: dev.Address, Name: dev.Name},
			transport,
			registers.SectionsFor(registers.Family(dev.Family)),
			opts,
		)

		// Publisher may be nil; the poller then only logs and caches
		var pub services.SnapshotPublisher
		if publisher != nil {
			pub = publisher
		}
		poller := services.NewDevicePoller(manager, pub,
			cfg.Polling.Interval.Std(), cfg.Polling.UnhealthyMultiplier)

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Start(ctx)
		}()
		started++
	}

	if started == 0 {
		logger.LogError("No enabled devices, nothing to do")
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.LogInfo("Received %v, shutting down...", sig)

	cancel()
	wg.Wait()
	logger.LogInfo("Shutdown complete")
}
