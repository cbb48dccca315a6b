package orientation

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttSubscribeClient is the part of mqtt.Client used by MQTTSource.
type mqttSubscribeClient interface {
	IsConnectionOpen() bool
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTSource reads orientation readings published as JSON on an MQTT topic,
// e.g. by an IMU producer running next to the sensor.
type MQTTSource struct {
	client mqttSubscribeClient
	topic  string
	qos    byte
	logger *log.Logger
}

// NewMQTTSource creates a source subscribing to topic on an already connected
// client.
func NewMQTTSource(client mqtt.Client, topic string, logger *log.Logger) *MQTTSource {
	if logger == nil {
		logger = log.Default()
	}
	return &MQTTSource{
		client: client,
		topic:  topic,
		logger: logger,
	}
}

// Supported reports whether the broker connection is up.
func (s *MQTTSource) Supported() bool {
	return s.client != nil && s.client.IsConnectionOpen()
}

// Subscribe registers fn for every message on the topic. Payloads that do not
// decode are logged and skipped.
func (s *MQTTSource) Subscribe(fn func(Reading)) (func(), error) {
	token := s.client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		var r Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			s.logger.Printf("mqtt orientation payload unmarshal error: %v", err)
			return
		}
		fn(r)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.topic, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			t := s.client.Unsubscribe(s.topic)
			t.Wait()
			if err := t.Error(); err != nil {
				s.logger.Printf("mqtt unsubscribe %s: %v", s.topic, err)
			}
		})
	}, nil
}
