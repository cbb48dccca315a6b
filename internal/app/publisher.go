package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publishTimeout bounds how long a publish waits for the broker.
const publishTimeout = 2 * time.Second

// mqttPublishClient is the part of mqtt.Client used for publishing.
type mqttPublishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes gesture events as JSON on an MQTT topic.
type MQTTPublisher struct {
	client mqttPublishClient
	topic  string
}

// NewMQTTPublisher creates a publisher on an already connected client.
func NewMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic}
}

// Publish sends ev with QoS 0, not retained.
func (p *MQTTPublisher) Publish(ev GestureEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}
