// HSB Core - home automation hub.
//
// The hub owns the device registry, the automation engine and the
// binary client protocol. Drivers report device state in; clients and
// automation push commands out through a single dispatcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qubit-star/hsb-core/internal/bus"
	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/drivers/ir"
	"github.com/qubit-star/hsb-core/internal/drivers/virtual"
	"github.com/qubit-star/hsb-core/internal/infrastructure/config"
	"github.com/qubit-star/hsb-core/internal/infrastructure/database"
	"github.com/qubit-star/hsb-core/internal/infrastructure/logging"
	"github.com/qubit-star/hsb-core/internal/scene"
	"github.com/qubit-star/hsb-core/internal/server"
	"github.com/qubit-star/hsb-core/internal/storage"
	"github.com/qubit-star/hsb-core/internal/telemetry"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hsb core", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "box_id", cfg.Box.ID)

	// Database and persistence.
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	store := storage.New(db)
	log.Info("database ready", "path", cfg.Database.Path)

	// Registries and dispatcher.
	registry := device.NewRegistry(store)
	registry.SetLogger(log)
	registry.SetTimerWindows(cfg.Timers.FireWindow, cfg.Timers.RolloverWindow)

	dispatcher := device.NewDispatcher(registry, cfg.Dispatcher.QueueSize)
	dispatcher.SetLogger(log)
	registry.SetActionSink(dispatcher)

	scenes := scene.NewRegistry(store)
	scenes.SetLogger(log)
	engine := scene.NewEngine(scenes, registry, dispatcher, cfg.Scene.Workers)
	engine.SetLogger(log)

	// MQTT bus (optional).
	var busClient *bus.Client
	if cfg.MQTT.Enabled {
		busClient, err = bus.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to mqtt: %w", err)
		}
		busClient.SetLogger(log)
		defer busClient.Close()

		relay := bus.NewRelay(busClient, cfg.MQTT.TopicPrefix)
		relay.SetLogger(log)
		registry.AddNotifier(relay)
		log.Info("mqtt connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	} else {
		log.Info("mqtt disabled")
	}

	// Telemetry (optional).
	if cfg.InfluxDB.Enabled {
		writer, err := telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		writer.SetLogger(log)
		defer writer.Close()
		registry.AddNotifier(writer)
		log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("influxdb disabled")
	}

	// Drivers.
	if err := registry.RegisterDriver(virtual.New(registry, log)); err != nil {
		return fmt.Errorf("registering virtual driver: %w", err)
	}
	var tx ir.Transmitter = logTransmitter{log}
	if busClient != nil {
		tx = bus.NewTransmitter(busClient, cfg.MQTT.TopicPrefix)
	}
	if err := registry.RegisterDriver(ir.New(registry, registry, tx, log)); err != nil {
		return fmt.Errorf("registering ir driver: %w", err)
	}

	// Restore persisted state, recover what drivers can re-adopt, then
	// let discovery re-report the rest.
	if err := registry.LoadFromStore(ctx); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	if err := scenes.LoadFromStore(ctx); err != nil {
		return fmt.Errorf("loading scenes: %w", err)
	}
	registry.RecoverOffline(ctx)
	registry.ProbeAll(ctx)

	// Client-facing servers.
	hub := server.NewHub(cfg.Network.MaxClients)
	hub.SetLogger(log)
	registry.AddNotifier(hub)

	tcpServer := server.New(cfg.Network, registry, scenes, engine, dispatcher, hub)
	tcpServer.SetLogger(log)
	udpServer := server.NewUDPServer(cfg.Network.UDPPort, cfg.Box.ID)
	udpServer.SetLogger(log)

	errs := make(chan error, 4)
	go func() { errs <- dispatcher.Run(ctx) }()
	go func() { errs <- engine.Run(ctx) }()
	go func() { errs <- tcpServer.Run(ctx) }()
	go func() { errs <- udpServer.Run(ctx) }()

	// The 1 Hz tick drives timers and armed delays.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				registry.Tick(now)
			}
		}
	}()

	log.Info("initialisation complete",
		"tcp_port", cfg.Network.TCPPort,
		"udp_port", cfg.Network.UDPPort,
	)

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			return err
		}
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path, overridable
// through HSB_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("HSB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// logTransmitter stands in for an infrared blaster when no bus is
// configured: bursts are visible in the log instead of on the air.
type logTransmitter struct {
	log *logging.Logger
}

func (t logTransmitter) Transmit(_ context.Context, remoteID uint32, actID uint16, param1 uint16, param2 uint32) error {
	t.log.Info("ir burst",
		"remote_id", remoteID, "act_id", actID, "param1", param1, "param2", param2)
	return nil
}
