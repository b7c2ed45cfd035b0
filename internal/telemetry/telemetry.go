package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second

	msPerSecond = 1000
)

// Logger defines the logging interface used by the telemetry layer.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Writer records device status changes and events as InfluxDB points.
// It implements device.Notifier; points are batched and written
// asynchronously, so notification callbacks never block on the
// database.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   Logger
}

// Connect creates a telemetry writer against the configured InfluxDB
// server, verifying connectivity with a ping.
func Connect(cfg config.InfluxDBConfig) (*Writer, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*msPerSecond))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging influxdb at %s: %w", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s not healthy", cfg.URL)
	}

	w := &Writer{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   noopLogger{},
	}
	go w.drainErrors(w.writeAPI.Errors())
	return w, nil
}

// SetLogger sets the logger for the writer.
func (w *Writer) SetLogger(logger Logger) {
	w.logger = logger
}

// drainErrors logs async write failures; batched writes surface errors
// on a channel rather than at the call site.
func (w *Writer) drainErrors(errs <-chan error) {
	for err := range errs {
		w.logger.Warn("telemetry write failed", "error", err)
	}
}

// Close flushes pending points and shuts the client down.
func (w *Writer) Close() {
	if w.client == nil {
		return
	}
	w.writeAPI.Flush()
	w.client.Close()
}

// StatusChanged implements device.Notifier. Each status pair becomes a
// point in the device_status measurement tagged by device and slot.
func (w *Writer) StatusChanged(devID uint32, pairs []device.StatusPair) {
	now := time.Now()
	for _, pair := range pairs {
		point := write.NewPoint(
			"device_status",
			map[string]string{
				"dev_id":    strconv.FormatUint(uint64(devID), 10),
				"status_id": strconv.FormatUint(uint64(pair.ID), 10),
			},
			map[string]interface{}{"value": int64(pair.Value)},
			now,
		)
		w.writeAPI.WritePoint(point)
	}
}

// DeviceEvent implements device.Notifier.
func (w *Writer) DeviceEvent(evt device.Event) {
	point := write.NewPoint(
		"device_events",
		map[string]string{
			"dev_id":   strconv.FormatUint(uint64(evt.DevID), 10),
			"event_id": strconv.FormatUint(uint64(evt.ID), 10),
		},
		map[string]interface{}{
			"param1": int64(evt.Param1),
			"param2": int64(evt.Param2),
		},
		time.Now(),
	)
	w.writeAPI.WritePoint(point)
}

// DeviceArrived implements device.Notifier.
func (w *Writer) DeviceArrived(dev *device.Device) {
	point := write.NewPoint(
		"device_online",
		map[string]string{
			"dev_id":    strconv.FormatUint(uint64(dev.ID), 10),
			"driver_id": strconv.FormatUint(uint64(dev.Info.DriverID), 10),
		},
		map[string]interface{}{"dev_type": int64(dev.Info.Type)},
		time.Now(),
	)
	w.writeAPI.WritePoint(point)
}
