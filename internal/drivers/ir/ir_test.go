package ir

import (
	"context"
	"errors"
	"testing"

	"github.com/qubit-star/hsb-core/internal/device"
)

type fakeLinker struct{ remote uint32 }

func (f fakeLinker) RemoteFor(devID uint32) uint32 { return f.remote }

type fakeTransmitter struct {
	sent []uint32
	err  error
}

func (f *fakeTransmitter) Transmit(ctx context.Context, remoteID uint32, actID uint16, p1 uint16, p2 uint32) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, remoteID)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestSetActionRelaysThroughLinkedRemote(t *testing.T) {
	tx := &fakeTransmitter{}
	d := New(nil, fakeLinker{remote: 5}, tx, nopLogger{})

	tv := &device.Device{ID: 2, Info: device.Info{Type: device.TypeTV, DriverID: device.IRDriverID}}
	if err := d.SetAction(context.Background(), tv, 1, 0, 0); err != nil {
		t.Fatalf("SetAction() error = %v", err)
	}
	if len(tx.sent) != 1 || tx.sent[0] != 5 {
		t.Errorf("transmits = %v, want via remote 5", tx.sent)
	}
}

func TestSetActionWithoutLinkFails(t *testing.T) {
	d := New(nil, fakeLinker{remote: 0}, &fakeTransmitter{}, nopLogger{})

	tv := &device.Device{ID: 2, Info: device.Info{Type: device.TypeTV, DriverID: device.IRDriverID}}
	err := d.SetAction(context.Background(), tv, 1, 0, 0)
	if !errors.Is(err, device.ErrNotSupported) {
		t.Errorf("SetAction() error = %v, want ErrNotSupported", err)
	}
}

func TestRemoteTransmitsDirectly(t *testing.T) {
	tx := &fakeTransmitter{}
	d := New(nil, fakeLinker{remote: 0}, tx, nopLogger{})

	remote := &device.Device{ID: 7, Info: device.Info{Type: device.TypeRemoteController, DriverID: device.IRDriverID}}
	if err := d.SetAction(context.Background(), remote, 3, 0, 0); err != nil {
		t.Fatalf("SetAction() error = %v", err)
	}
	if len(tx.sent) != 1 || tx.sent[0] != 7 {
		t.Errorf("transmits = %v, want via itself", tx.sent)
	}
}

func TestSetActionTransmitFailure(t *testing.T) {
	tx := &fakeTransmitter{err: errors.New("blaster offline")}
	d := New(nil, fakeLinker{remote: 5}, tx, nopLogger{})

	tv := &device.Device{ID: 2, Info: device.Info{Type: device.TypeTV, DriverID: device.IRDriverID}}
	err := d.SetAction(context.Background(), tv, 1, 0, 0)
	if !errors.Is(err, device.ErrIOFail) {
		t.Errorf("SetAction() error = %v, want ErrIOFail", err)
	}
}

func TestGetStatusUnsupported(t *testing.T) {
	d := New(nil, fakeLinker{}, &fakeTransmitter{}, nopLogger{})

	tv := &device.Device{ID: 2, Info: device.Info{Type: device.TypeTV}}
	if _, err := d.GetStatus(context.Background(), tv); !errors.Is(err, device.ErrNotSupported) {
		t.Errorf("GetStatus() error = %v, want ErrNotSupported", err)
	}
}
