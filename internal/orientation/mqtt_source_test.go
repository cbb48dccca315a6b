package orientation

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeBroker struct {
	open         bool
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
}

func (b *fakeBroker) IsConnectionOpen() bool { return b.open }

func (b *fakeBroker) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	b.handlers[topic] = cb
	return doneToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	for _, t := range topics {
		delete(b.handlers, t)
		b.unsubscribed = append(b.unsubscribed, t)
	}
	return doneToken{}
}

func (b *fakeBroker) publish(topic, payload string) {
	if cb, ok := b.handlers[topic]; ok {
		cb(nil, fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

func TestMQTTSource(t *testing.T) {
	broker := &fakeBroker{open: true, handlers: map[string]mqtt.MessageHandler{}}
	var logs bytes.Buffer
	src := &MQTTSource{client: broker, topic: "headsup/orientation", logger: log.New(&logs, "", 0)}

	if !src.Supported() {
		t.Fatal("open connection should be supported")
	}

	sampler := NewSampler(src)
	var got []Sample
	if err := sampler.Start(func(s Sample) { got = append(got, s) }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	broker.publish("headsup/orientation", `{"beta": 4, "gamma": 88, "timestamp": 10}`)
	broker.publish("headsup/orientation", `{"beta": null, "gamma": 88, "timestamp": 20}`)
	broker.publish("headsup/orientation", `not json`)
	broker.publish("other/topic", `{"beta": 1, "gamma": 1, "timestamp": 30}`)

	if len(got) != 1 || got[0].TimestampMs != 10 {
		t.Errorf("samples = %+v, want one at ts 10", got)
	}
	if !strings.Contains(logs.String(), "unmarshal") {
		t.Errorf("bad payload not logged: %q", logs.String())
	}

	sampler.Stop()
	if len(broker.unsubscribed) != 1 {
		t.Errorf("unsubscribed = %v, want the orientation topic", broker.unsubscribed)
	}

	broker.open = false
	if src.Supported() {
		t.Error("closed connection should not be supported")
	}
}
