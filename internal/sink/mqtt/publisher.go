// internal/sink/mqtt/publisher.go
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"serial-bridge/internal/config"
	"serial-bridge/internal/model"
)

const (
	publishTimeout    = 2 * time.Second
	disconnectQuiesce = 250
)

// Publisher forwards connection events to an MQTT broker. Each event goes to
// <topic>/<event type>; state changes are retained so late subscribers see
// the current state.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewPublisher connects to the broker described by cfg
func NewPublisher(cfg *config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("MQTT connection to %s failed: %w", cfg.Broker, tok.Error())
	}

	return NewPublisherWithClient(client, cfg.Topic, logger), nil
}

// NewPublisherWithClient wraps an already connected client
func NewPublisherWithClient(client mqtt.Client, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		logger: logger.With(zap.String("component", "mqtt-sink")),
	}
}

// Handle publishes e. It matches event.Listener so it can be subscribed to
// the bus directly.
func (p *Publisher) Handle(e model.Event) {
	if err := p.Publish(e); err != nil {
		p.logger.Warn("MQTT publish failed",
			zap.String("event_type", string(e.Type)),
			zap.Error(err),
		)
	}
}

// Publish sends e and waits up to a short timeout for the broker
func (p *Publisher) Publish(e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	topic := p.TopicFor(e.Type)
	retained := e.Type == model.EventStateChanged

	tok := p.client.Publish(topic, 0, retained, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("Published event", zap.String("topic", topic))
	return nil
}

// TopicFor returns the topic events of type t are published on
func (p *Publisher) TopicFor(t model.EventType) string {
	return p.topic + "/" + strings.ToLower(string(t))
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
