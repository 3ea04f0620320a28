// Package retry provides retry logic with exponential backoff and jitter,
// tuned for waiting on database connectivity.
//
// DefaultRetryable treats timeouts, refused or reset connections,
// driver.ErrBadConn and a busy embedded database as transient.
//
//	cfg := retry.DefaultConfig()
//	cfg.MaxElapsedTime = time.Minute
//	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("database not ready", "attempt", attempt, "delay", delay, "error", err)
//	}
//	err := retry.Do(ctx, cfg, conn.Ping)
package retry
