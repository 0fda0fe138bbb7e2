package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ble-solar-monitor/pkg/config"
	"ble-solar-monitor/pkg/logger"
	"ble-solar-monitor/pkg/registers"
)

// Publisher pushes combined reading snapshots and per-device availability to
// an MQTT broker. State goes to <prefix>/<device>/state as JSON,
// availability to <prefix>/<device>/status as a retained online/offline
// marker, the way Home Assistant expects them.
type Publisher struct {
	client paho.Client
	cfg    *config.MQTTConfig
}

// NewPublisher creates a publisher from config. The broker connection is
// opened by Connect.
func NewPublisher(cfg *config.MQTTConfig) *Publisher {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60
	}
	opts.SetKeepAlive(time.Duration(keepAlive) * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Mark the whole bridge offline if the process drops off the broker
	opts.SetWill(cfg.TopicPrefix+"/bridge/status", "offline", 1, true)

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.LogInfo("Publisher connected to MQTT broker")
		if token := client.Publish(cfg.TopicPrefix+"/bridge/status", 1, true, "online"); token.Wait() && token.Error() != nil {
			logger.LogWarn("Error publishing bridge online status: %v", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		logger.LogError("Publisher disconnected from MQTT broker: %v", err)
	})

	return &Publisher{
		client: paho.NewClient(opts),
		cfg:    cfg,
	}
}

// Connect opens the broker connection, bounded by ctx
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		if token.Error() != nil {
			return fmt.Errorf("mqtt connect: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect cancelled: %w", ctx.Err())
	}
}

// PublishReadings publishes one device's combined snapshot as JSON
func (p *Publisher) PublishReadings(device string, readings registers.ReadingMap) error {
	payload, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("marshal readings for %s: %w", device, err)
	}

	topic := fmt.Sprintf("%s/%s/state", p.cfg.TopicPrefix, device)
	if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// PublishAvailability publishes the retained online/offline marker for one
// device, driven by the health verdict and reading staleness
func (p *Publisher) PublishAvailability(device string, online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}

	topic := fmt.Sprintf("%s/%s/status", p.cfg.TopicPrefix, device)
	if token := p.client.Publish(topic, 1, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect publishes the bridge offline marker and closes the connection
func (p *Publisher) Disconnect() {
	if p.client.IsConnected() {
		if token := p.client.Publish(p.cfg.TopicPrefix+"/bridge/status", 1, true, "offline"); token.Wait() && token.Error() != nil {
			logger.LogWarn("Error publishing bridge offline status: %v", token.Error())
		}
		p.client.Disconnect(250)
	}
}
