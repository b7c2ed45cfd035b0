package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/qubit-star/hsb-core/internal/device"
)

// Publisher is the outbound half of the bus client used by the relay.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Relay mirrors registry notifications onto MQTT topics so external
// integrations can follow the hub without speaking the binary
// protocol. It implements device.Notifier.
//
// Topics, under the configured prefix:
//
//	<prefix>/event/<dev_id>   automation and lifecycle events
//	<prefix>/status/<dev_id>  status vector changes
//	<prefix>/device/online    device arrival announcements
type Relay struct {
	pub    Publisher
	prefix string
	logger Logger
}

// NewRelay creates a notification relay publishing under prefix.
func NewRelay(pub Publisher, prefix string) *Relay {
	return &Relay{pub: pub, prefix: prefix, logger: noopLogger{}}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

type eventMessage struct {
	DevID     uint32    `json:"dev_id"`
	EventID   uint16    `json:"event_id"`
	Param1    uint16    `json:"param1"`
	Param2    uint32    `json:"param2"`
	Timestamp time.Time `json:"timestamp"`
}

type statusMessage struct {
	DevID     uint32              `json:"dev_id"`
	Status    []device.StatusPair `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
}

type arrivalMessage struct {
	DevID     uint32    `json:"dev_id"`
	DriverID  uint32    `json:"driver_id"`
	Type      uint32    `json:"type"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceEvent implements device.Notifier.
func (r *Relay) DeviceEvent(evt device.Event) {
	r.publish(fmt.Sprintf("%s/event/%d", r.prefix, evt.DevID), eventMessage{
		DevID:     evt.DevID,
		EventID:   evt.ID,
		Param1:    evt.Param1,
		Param2:    evt.Param2,
		Timestamp: time.Now().UTC(),
	})
}

// StatusChanged implements device.Notifier.
func (r *Relay) StatusChanged(devID uint32, pairs []device.StatusPair) {
	r.publish(fmt.Sprintf("%s/status/%d", r.prefix, devID), statusMessage{
		DevID:     devID,
		Status:    pairs,
		Timestamp: time.Now().UTC(),
	})
}

// DeviceArrived implements device.Notifier.
func (r *Relay) DeviceArrived(dev *device.Device) {
	r.publish(r.prefix+"/device/online", arrivalMessage{
		DevID:     dev.ID,
		DriverID:  dev.Info.DriverID,
		Type:      dev.Info.Type,
		Name:      dev.Config.Name,
		Location:  dev.Config.Location,
		Timestamp: time.Now().UTC(),
	})
}

func (r *Relay) publish(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encoding bus message", "topic", topic, "error", err)
		return
	}
	r.pub.Publish(topic, payload)
}
