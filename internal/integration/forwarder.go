package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/simshield/simshield-server/internal/config"
	"github.com/simshield/simshield-server/internal/models"
	"github.com/simshield/simshield-server/internal/simulation"
)

// statePublishInterval matches the dashboard push cadence
const statePublishInterval = 1 * time.Second

// Forwarder publishes simulation events and periodic state snapshots to
// external systems. Both sinks are optional; a nil NATS connection or an
// empty MQTT broker disables that sink.
type Forwarder struct {
	engine *simulation.Engine
	nc     *nats.Conn

	mqttCfg    config.MQTTConfig
	mqttClient mqtt.Client
}

// NewForwarder creates a forwarder
func NewForwarder(engine *simulation.Engine, nc *nats.Conn, mqttCfg config.MQTTConfig) *Forwarder {
	return &Forwarder{
		engine:  engine,
		nc:      nc,
		mqttCfg: mqttCfg,
	}
}

// Start connects the MQTT sink if configured, subscribes to engine events
// and publishes state on a fixed cadence until the context is cancelled
func (f *Forwarder) Start(ctx context.Context) error {
	if f.mqttCfg.Broker != "" {
		if err := f.connectMQTT(); err != nil {
			log.Warn().Err(err).Msg("Failed to connect MQTT sink, continuing without it")
		}
	}

	sub := f.engine.Subscribe(f.publishEvent)
	defer sub.Unsubscribe()

	log.Info().
		Bool("nats", f.nc != nil).
		Bool("mqtt", f.mqttClient != nil).
		Msg("Integration forwarder started")

	ticker := time.NewTicker(statePublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if f.mqttClient != nil {
				f.mqttClient.Disconnect(250)
			}
			return ctx.Err()
		case <-ticker.C:
			f.publishState()
		}
	}
}

func (f *Forwarder) connectMQTT() error {
	opts := mqtt.NewClientOptions().
		AddBroker(f.mqttCfg.Broker).
		SetClientID(f.mqttCfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	if f.mqttCfg.Username != "" {
		opts.SetUsername(f.mqttCfg.Username)
		opts.SetPassword(f.mqttCfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return fmt.Errorf("connect MQTT broker: %w", token.Error())
	}

	f.mqttClient = client
	return nil
}

// publishEvent runs inside the engine's emit path; publish calls below are
// fire-and-forget and must not block
func (f *Forwarder) publishEvent(event *models.SimulationEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event for forwarding")
		return
	}

	if f.nc != nil {
		subject := fmt.Sprintf("simulation.events.%s", event.Type)
		if err := f.nc.Publish(subject, data); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event to NATS")
		}
	}

	if f.mqttClient != nil {
		topic := fmt.Sprintf("%s/events/%s", f.mqttCfg.TopicPrefix, event.Type)
		f.mqttClient.Publish(topic, 0, false, data)
	}
}

func (f *Forwarder) publishState() {
	state := f.engine.State()
	data, err := json.Marshal(state)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal state for forwarding")
		return
	}

	if f.nc != nil {
		if err := f.nc.Publish("simulation.state", data); err != nil {
			log.Warn().Err(err).Msg("Failed to publish state to NATS")
		}
	}

	if f.mqttClient != nil {
		f.mqttClient.Publish(fmt.Sprintf("%s/state", f.mqttCfg.TopicPrefix), 0, false, data)
	}
}
