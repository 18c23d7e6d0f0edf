package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/config"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/database"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/logging"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/rabbitmq"
	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
	"github.com/nerrad567/weddingcue-core/migrations"
)

// app is the shared bootstrap every command builds on: configuration,
// logger, migrated database and the timeline store.
type app struct {
	cfg   *config.Config
	log   *logging.Logger
	db    *database.DB
	store *timeline.SQLiteStore

	// Connected transports, nil when disabled.
	mqtt   *mqtt.Client
	rabbit *rabbitmq.Publisher

	closers []func()
}

// openApp loads configuration, opens the database and applies migrations.
//
// Parameters:
//   - ctx: Context for migrations
//   - serving: true for the long-running server, whose logs follow the
//     configured output. One-shot commands log to stderr so their stdout
//     stays clean for the operator.
//
// Returns:
//   - *app: Ready to use; call Close when done
//   - error: If config, database or migrations fail
func openApp(ctx context.Context, serving bool) (*app, error) {
	// Use default logger until config is loaded
	log := logging.Default()

	loaded, err := config.LoadDotEnv(flagEnvFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading env files: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if serving {
		log = logging.New(cfg.Logging, version)
	} else {
		log = logging.NewWithWriter(cfg.Logging, version, os.Stderr)
	}
	log.Debug("configuration loaded", "path", configPath, "env_files", loaded)

	a := &app{cfg: cfg, log: log}

	if flagEphemeral {
		a.db, err = database.OpenMemory()
	} else {
		a.db, err = database.Open(cfg.Database)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.onClose(func() {
		log.Debug("closing database")
		if closeErr := a.db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	})
	log.Debug("database connected", "path", a.db.Path())

	applied, err := a.db.Migrator(migrations.FS, migrations.Dir).Up(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("database migrations applied", "versions", applied)
	}

	a.store = timeline.NewSQLiteStore(a.db.DB)
	return a, nil
}

// onClose registers cleanup. Close runs them in reverse order.
func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases everything openApp and connectTransports acquired.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// connectTransports connects the optional outbound transports and returns
// a notification sink for each.
//
// MQTT and RabbitMQ are both optional: a disabled transport contributes no
// sink, and an unreachable one fails startup so the operator notices
// before the event rather than during it.
func (a *app) connectTransports() ([]notify.Publisher, error) {
	var sinks []notify.Publisher

	if a.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(a.cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		a.mqtt = client
		a.onClose(func() {
			a.log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				a.log.Error("error closing MQTT", "error", closeErr)
			}
		})
		client.SetLogger(a.log.Component("mqtt"))
		client.SetOnConnect(func() {
			a.log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			a.log.Warn("MQTT disconnected", "error", err)
		})
		a.log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port),
			"client_id", a.cfg.MQTT.Broker.ClientID,
		)
		sinks = append(sinks, notify.NewMQTTSink(client, mqtt.Topics{}.Timeline, client.QoS()))
	} else {
		a.log.Debug("MQTT disabled")
	}

	if a.cfg.RabbitMQ.Enabled {
		pub, err := rabbitmq.Connect(a.cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
		}
		a.rabbit = pub
		a.onClose(func() {
			a.log.Info("closing RabbitMQ publisher")
			if closeErr := pub.Close(); closeErr != nil {
				a.log.Error("error closing RabbitMQ", "error", closeErr)
			}
		})
		a.log.Info("RabbitMQ connected", "queue", a.cfg.RabbitMQ.Queue)
		sinks = append(sinks, notify.NewAMQPSink(pub, "weddingcue"))
	} else {
		a.log.Debug("RabbitMQ disabled")
	}

	return sinks, nil
}

// newEngine builds the timeline engine on the app's store.
func (a *app) newEngine(pub notify.Publisher) *engine.Engine {
	if pub == nil {
		pub = notify.Nop
	}
	eng := engine.NewEngine(a.store, pub, engine.SystemClock{}, a.log.Component("engine"))
	eng.SetChannel(a.cfg.Notify.Channel)
	return eng
}

// commandEngine is the engine one-shot commands use. Notifications go to
// the external transports so displays connected to a running server's
// broker still see operator actions taken from the terminal.
func (a *app) commandEngine() (*engine.Engine, error) {
	sinks, err := a.connectTransports()
	if err != nil {
		return nil, err
	}
	return a.newEngine(notify.Fanout(sinks)), nil
}
