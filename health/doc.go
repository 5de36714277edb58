// Package health reports whether the sync core is in a usable state.
//
// A Checker reports one component: the session (is there a credential, is
// it about to expire) or the realtime connection (connected, reconnecting,
// stopped). An Aggregator runs a set of checkers and folds their results
// into one Status: unhealthy if any check is unhealthy, degraded if any is
// degraded, healthy otherwise.
//
//	agg := health.NewAggregator()
//	agg.Register(health.SessionChecker(session, time.Minute))
//	agg.Register(reconciler.Checker())
//	report := agg.Run(ctx)
//	if report.Status != health.StatusHealthy { ... }
package health
