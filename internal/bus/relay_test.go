package bus

import (
	"encoding/json"
	"testing"

	"github.com/qubit-star/hsb-core/internal/device"
)

type capturedMessage struct {
	topic   string
	payload []byte
}

type capturePublisher struct {
	messages []capturedMessage
}

func (p *capturePublisher) Publish(topic string, payload []byte) {
	p.messages = append(p.messages, capturedMessage{topic: topic, payload: payload})
}

func TestRelayDeviceEvent(t *testing.T) {
	pub := &capturePublisher{}
	relay := NewRelay(pub, "hsb")

	relay.DeviceEvent(device.Event{DevID: 5, ID: device.EvtSensorTriggered, Param1: 1, Param2: 2})

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if got := pub.messages[0].topic; got != "hsb/event/5" {
		t.Errorf("topic = %q, want hsb/event/5", got)
	}

	var msg eventMessage
	if err := json.Unmarshal(pub.messages[0].payload, &msg); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if msg.DevID != 5 || msg.EventID != device.EvtSensorTriggered || msg.Param1 != 1 || msg.Param2 != 2 {
		t.Errorf("message = %+v, want the reported event", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Errorf("timestamp missing")
	}
}

func TestRelayStatusChanged(t *testing.T) {
	pub := &capturePublisher{}
	relay := NewRelay(pub, "hsb")

	relay.StatusChanged(3, []device.StatusPair{{ID: 0, Value: 1}, {ID: 1, Value: 40}})

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if got := pub.messages[0].topic; got != "hsb/status/3" {
		t.Errorf("topic = %q, want hsb/status/3", got)
	}

	var msg statusMessage
	if err := json.Unmarshal(pub.messages[0].payload, &msg); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if msg.DevID != 3 || len(msg.Status) != 2 || msg.Status[1].Value != 40 {
		t.Errorf("message = %+v, want both pairs", msg)
	}
}

func TestRelayDeviceArrived(t *testing.T) {
	pub := &capturePublisher{}
	relay := NewRelay(pub, "hsb")

	relay.DeviceArrived(&device.Device{
		ID:     9,
		Info:   device.Info{DriverID: 1, Type: device.TypePlug},
		Config: device.Config{Name: "desk plug", Location: "office"},
	})

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	if got := pub.messages[0].topic; got != "hsb/device/online" {
		t.Errorf("topic = %q, want hsb/device/online", got)
	}

	var msg arrivalMessage
	if err := json.Unmarshal(pub.messages[0].payload, &msg); err != nil {
		t.Fatalf("unmarshalling payload: %v", err)
	}
	if msg.DevID != 9 || msg.Name != "desk plug" || msg.Location != "office" {
		t.Errorf("message = %+v, want the arrived device", msg)
	}
}
