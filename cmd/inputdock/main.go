// Input Dock Core - Input Controller Management Service
//
// This is the main entry point for the Input Dock Core application.
// Input Dock manages plug-in input controllers for a shared host:
//   - Device discovery and reconciliation (USB and wireless HID)
//   - Logical slot assignment for connected controllers
//   - Keyboard focus tracking for text-input surfaces
//   - Delivery over MQTT, REST, and WebSocket
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/input-dock-core/migrations"

	"github.com/nerrad567/input-dock-core/internal/api"
	"github.com/nerrad567/input-dock-core/internal/bridges/hid"
	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/eventbus"
	"github.com/nerrad567/input-dock-core/internal/focus"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/config"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/database"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/logging"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/input-dock-core/internal/journal"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // Linear startup sequence; splitting hurts readability
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Input Dock Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Event bus carries device and focus events to the delivery layers
	bus := eventbus.New()

	// Discovery provider
	provider, cleanup, err := buildProvider(cfg.Discovery, log)
	if err != nil {
		return fmt.Errorf("initialising discovery: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Device manager
	manager := controller.NewManager(provider, bus)
	manager.SetLogger(log)
	manager.SetAutoAssignSlots(cfg.Discovery.AutoAssignSlots)

	// Focus tracker
	debounce := time.Duration(cfg.Focus.DebounceMs) * time.Millisecond
	tracker := focus.NewTracker(bus, hostEnvironment{}, debounce)
	tracker.SetLogger(log)
	for _, surface := range cfg.Focus.Surfaces {
		tracker.StartTracking(surface)
		log.Info("tracking focus surface", "surface", surface)
	}

	// Journal: persist connect/disconnect history
	journalRepo := journal.NewSQLiteRepository(db.DB)
	journalRecorder := journal.NewRecorder(journalRepo)
	journalRecorder.SetLogger(log)
	journalRecorder.Start(bus)
	defer journalRecorder.Stop()

	if cfg.Database.JournalRetentionDays > 0 {
		go pruneJournalLoop(ctx, journalRepo, cfg.Database.JournalRetentionDays, log)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		bridge := mqtt.NewBridge(mqttClient, bus, manager)
		if err := bridge.Start(); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		defer bridge.Stop()
		log.Info("MQTT bridge started")
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		recorder := influxdb.NewRecorder(influxClient, bus, manager)
		recorder.Start()
		defer recorder.Stop()
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start device monitoring
	manager.StartMonitoring()
	defer manager.StopMonitoring()

	// Start the HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Manager:  manager,
			Tracker:  tracker,
			Journal:  journalRepo,
			Bus:      bus,
			MQTT:     mqttClient,
			DB:       db,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Input Dock Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses INPUTDOCK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("INPUTDOCK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildProvider constructs the discovery provider named in the config.
//
// The "none" backend disables hardware discovery; the manager then only sees
// events injected by the host through HandleConnect and friends.
func buildProvider(cfg config.DiscoveryConfig, log *logging.Logger) (controller.DiscoveryProvider, func(), error) {
	switch cfg.Backend {
	case "", "hid":
		provider, err := hid.NewProvider(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating HID provider: %w", err)
		}
		provider.SetLogger(log)

		ctx, cancel := context.WithCancel(context.Background())
		provider.Start(ctx)
		cleanup := func() {
			cancel()
			if closeErr := provider.Close(); closeErr != nil {
				log.Error("error closing HID provider", "error", closeErr)
			}
		}
		log.Info("HID discovery started", "poll_interval", cfg.PollInterval)
		return provider, cleanup, nil

	case "none":
		log.Info("hardware discovery disabled")
		return nullProvider{}, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown discovery backend %q", cfg.Backend)
	}
}

// nullProvider is the no-hardware discovery backend.
type nullProvider struct{}

func (nullProvider) EnumerateConnected() []controller.RawDevice { return nil }
func (nullProvider) KeyboardPresent() bool                      { return false }
func (nullProvider) Subscribe(controller.DiscoveryObserver)     {}
func (nullProvider) Unsubscribe()                               {}
func (nullProvider) StartWirelessDiscovery(completion func()) {
	if completion != nil {
		completion()
	}
}
func (nullProvider) StopWirelessDiscovery() {}

// hostEnvironment is the focus environment for headless deployments, where
// surfaces are always foreground and no raw focus signal exists. The tracker
// then drives focus purely from the entered/exited bus events.
type hostEnvironment struct{}

func (hostEnvironment) ForegroundActive(string) bool { return true }
func (hostEnvironment) MultiWindowMode(string) bool  { return false }
func (hostEnvironment) RawFocus(string) (bool, bool) { return false, false }

// pruneJournalLoop removes journal entries older than the retention window,
// once a day until the context is cancelled.
func pruneJournalLoop(ctx context.Context, repo journal.Repository, retentionDays int, log *logging.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		pruned, err := repo.PruneBefore(ctx, cutoff)
		if err != nil {
			log.Error("journal prune failed", "error", err)
		} else if pruned > 0 {
			log.Info("journal pruned", "entries", pruned, "cutoff", cutoff.Format(time.RFC3339))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthCheck verifies infrastructure connections are healthy. The MQTT and
// InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
