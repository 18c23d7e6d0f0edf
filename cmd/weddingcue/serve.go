package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/weddingcue-core/internal/api"
	"github.com/nerrad567/weddingcue-core/internal/audit"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/redislock"
	"github.com/nerrad567/weddingcue-core/internal/notify"
	"github.com/nerrad567/weddingcue-core/internal/rehearsal"
	"github.com/nerrad567/weddingcue-core/internal/remote"
	"github.com/nerrad567/weddingcue-core/internal/sweep"
	"github.com/nerrad567/weddingcue-core/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the timeline API, clock sweep and cue listener",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// run is the server's application logic, separated from the command for
// testability. It blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	log.Info("starting weddingcue",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site", a.cfg.Site.ID,
	)

	sinks, err := a.connectTransports()
	if err != nil {
		return err
	}

	// The hub is created before the engine so the engine can publish to it.
	hub := api.NewHub(a.cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	eng := a.newEngine(notify.Fanout(append([]notify.Publisher{hub}, sinks...)))

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if a.cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(a.cfg.InfluxDB)
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
			"url", a.cfg.InfluxDB.URL,
			"org", a.cfg.InfluxDB.Org,
			"bucket", a.cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		eng.SetRecorder(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Sweep lock: Redis when several instances share one database,
	// in-process otherwise.
	var locker redislock.Locker = redislock.NewLocalLocker()
	var redisLocker *redislock.RedisLocker
	if a.cfg.Redis.Enabled {
		redisLocker, err = redislock.Connect(a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisLocker.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		locker = redisLocker
		log.Info("Redis sweep lock connected", "addr", a.cfg.Redis.Addr)
	}

	sweeper := sweep.New(eng, locker, a.cfg.SweepInterval(), a.cfg.SweepLockTTL(), log.Component("sweep"))
	if influxClient != nil {
		sweeper.SetMetrics(influxClient)
	}
	if a.cfg.Sweep.Enabled {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	} else {
		log.Info("clock sweep disabled; punctual timers start via the cron endpoint or operators")
	}

	// Cue buttons on the venue network (optional)
	if a.mqtt != nil && a.cfg.MQTT.Commands {
		listener := remote.NewListener(eng, a.mqtt, a.mqtt.QoS(), log.Component("remote"))
		if startErr := listener.Start(); startErr != nil {
			return fmt.Errorf("starting cue listener: %w", startErr)
		}
		defer func() {
			if stopErr := listener.Stop(); stopErr != nil {
				log.Warn("error stopping cue listener", "error", stopErr)
			}
		}()
	}

	rc := rehearsal.NewController(eng, log.Component("rehearsal"))
	rc.SetDefaultLead(a.cfg.RehearsalLead())

	deps := api.Deps{
		Config:    a.cfg.API,
		WS:        a.cfg.WebSocket,
		Security:  a.cfg.Security,
		Logger:    log,
		Engine:    eng,
		Tracker:   tracker.New(eng, log.Component("tracker")),
		Rehearsal: rc,
		Sweeper:   sweeper,
		AuditRepo: audit.NewSQLiteRepository(a.db.DB),
		Hub:       hub,
		DB:        a.db,
		Version:   version,
	}
	if a.mqtt != nil {
		deps.MQTT = a.mqtt
	}
	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, a, influxClient, redisLocker); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, sweeper, Redis,
	// InfluxDB, then the transports and database held by the app.
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - a: App holding the database and the optional transports
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - redisLocker: Redis lock to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, a *app, influxClient *influxdb.Client, redisLocker *redislock.RedisLocker) error {
	if err := a.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if a.mqtt != nil {
		if err := a.mqtt.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if a.rabbit != nil {
		if err := a.rabbit.HealthCheck(ctx); err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if redisLocker != nil {
		if err := redisLocker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}
