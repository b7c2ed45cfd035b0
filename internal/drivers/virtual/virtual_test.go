package virtual

import (
	"context"
	"testing"

	"github.com/qubit-star/hsb-core/internal/device"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestDriver(t *testing.T) (*device.Registry, *Driver) {
	t.Helper()
	reg := device.NewRegistry(nil)
	drv := New(reg, nopLogger{})
	if err := reg.RegisterDriver(drv); err != nil {
		t.Fatalf("RegisterDriver() error = %v", err)
	}
	return reg, drv
}

func TestProbeReReportsWithoutDuplicating(t *testing.T) {
	reg, drv := newTestDriver(t)
	ctx := context.Background()

	if err := drv.AddDevice(ctx, device.TypePlug); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if err := drv.Probe(ctx); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if got := reg.Devices(); len(got) != 1 {
		t.Errorf("Devices() after re-probe = %v, want a single record", got)
	}
}

func TestRecoverThenProbeKeepsOneRecord(t *testing.T) {
	reg, drv := newTestDriver(t)
	ctx := context.Background()

	if err := drv.AddDevice(ctx, device.TypePlug); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	ids := reg.Devices()
	if len(ids) != 1 {
		t.Fatalf("Devices() = %v, want one record", ids)
	}
	if err := reg.DeviceOffline(ctx, ids[0]); err != nil {
		t.Fatalf("DeviceOffline() error = %v", err)
	}

	// Startup order after a restart: drivers re-adopt persisted
	// devices, then every driver is probed.
	reg.RecoverOffline(ctx)
	if err := drv.Probe(ctx); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	got := reg.Devices()
	if len(got) != 1 || got[0] != ids[0] {
		t.Errorf("Devices() = %v, want [%d]", got, ids[0])
	}
}

func TestAddDeviceAssignsDistinctAddresses(t *testing.T) {
	reg, drv := newTestDriver(t)
	ctx := context.Background()

	if err := drv.AddDevice(ctx, device.TypePlug); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if err := drv.AddDevice(ctx, device.TypeSensor); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	if got := reg.Devices(); len(got) != 2 {
		t.Errorf("Devices() = %v, want two records", got)
	}
}
