// Package retry runs an operation again with exponential backoff.
//
// The controller retries only at its edges: binding the southbound
// listeners, opening the SQLite database and connecting to NATS for event
// export. Devices reconnect on their own and are never dialled from here.
//
// By default an error gets another attempt unless it is classified invalid
// or fatal (see the errors package) or is wrapped with NonRetryable:
//
//	db, err := retry.DoWithResult(ctx, retry.Quick(), func() (*sql.DB, error) {
//	    return open(path)
//	})
//
// Config.OnRetry is the hook for logging each failed attempt:
//
//	cfg := retry.Quick()
//	cfg.OnRetry = func(n int, err error, d time.Duration) {
//	    logger.Warn("NATS connect failed", "attempt", n, "retry_in", d, "error", err)
//	}
//
// Every wait honours context cancellation.
package retry
