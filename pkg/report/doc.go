// Package report publishes executor status snapshots and implements the
// report-and-shutdown handshake used at process exit.
//
// A Snapshot is a timestamped executor.Stats. Reporters deliver snapshots
// somewhere; RedisReporter writes each one to a hash keyed by pool name and
// publishes it on an events channel so dashboards can follow pools across a
// fleet of processes:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	reporter, err := report.NewRedisReporter(report.RedisConfig{Client: rdb})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	go report.Periodic(ctx, pool, reporter, 10*time.Second, logger)
//
//	// at exit
//	graceful, err := report.Handshake(ctx, pool, reporter, 30*time.Second)
//
// Handshake shuts the executor down, waits up to the grace period for
// queued work to drain, kills it if the grace period runs out and reports
// the final snapshot.
package report
