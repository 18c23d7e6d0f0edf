// Package sweep runs the clock trigger: a ticker that asks the engine to
// start whichever punctual timer has come due in each event active today.
//
// The same pass is exposed through the API cron route and the CLI sweep
// command. Per-event leases come from redislock; with Redis configured they
// coordinate across instances, otherwise they only serialise within one
// process.
//
//	sw := sweep.New(eng, locker, cfg.SweepInterval(), cfg.SweepLockTTL(), log)
//	sw.SetMetrics(influx)
//	sw.Start(ctx)
//	defer sw.Stop()
package sweep
