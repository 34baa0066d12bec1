// Package health reports whether the cache's persistent storage is usable.
//
// A Checker reports one component's Status: Healthy, Degraded, or Unhealthy.
// DirChecker verifies that a cache directory exists and accepts new files.
// Aggregator runs several checkers in parallel under one timeout.
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register(health.NewDirChecker("/var/cache/app"))
//	agg.Register(store.Checker())
//
//	results := agg.CheckAll(ctx)
//	if health.OverallStatus(results) == health.StatusUnhealthy {
//	    log.Printf("cache storage unavailable")
//	}
package health
