package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transmitter forwards infrared bursts to the broker, where a blaster
// bridge subscribed to <prefix>/ir/<remote_id> performs them.
type Transmitter struct {
	pub    Publisher
	prefix string
}

// NewTransmitter creates an infrared transmitter publishing under
// prefix.
func NewTransmitter(pub Publisher, prefix string) *Transmitter {
	return &Transmitter{pub: pub, prefix: prefix}
}

type irBurst struct {
	RemoteID uint32 `json:"remote_id"`
	ActID    uint16 `json:"act_id"`
	Param1   uint16 `json:"param1"`
	Param2   uint32 `json:"param2"`
}

// Transmit publishes one burst. Delivery is best effort like all bus
// traffic; the caller sees an error only when the burst cannot be
// encoded.
func (t *Transmitter) Transmit(ctx context.Context, remoteID uint32, actID uint16, param1 uint16, param2 uint32) error {
	payload, err := json.Marshal(irBurst{RemoteID: remoteID, ActID: actID, Param1: param1, Param2: param2})
	if err != nil {
		return fmt.Errorf("encoding ir burst: %w", err)
	}
	t.pub.Publish(fmt.Sprintf("%s/ir/%d", t.prefix, remoteID), payload)
	return nil
}
