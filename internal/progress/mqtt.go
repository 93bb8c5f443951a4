package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 2 * time.Second

// MQTTPublisher publishes each event to <topic>/<kind> as JSON.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// DialMQTT connects to broker (e.g. tcp://localhost:1883).
func DialMQTT(broker, topic, clientID string, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", broker, token.Error())
	}
	return NewMQTTPublisher(c, topic, logger), nil
}

func NewMQTTPublisher(c mqtt.Client, topic string, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: c, topic: topic, logger: logger}
}

func (p *MQTTPublisher) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Warn("encoding progress event", "error", err)
		return
	}
	token := p.client.Publish(p.topic+"/"+string(e.Kind), 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		p.logger.Warn("mqtt publish timed out", "kind", e.Kind, "seq", e.Seq)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", "kind", e.Kind, "error", err)
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
