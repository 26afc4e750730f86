// Package worker provides a bounded pool of goroutines for work that must
// leave the event loop, such as publishing events to NATS.
//
// Submit never blocks: when the queue is full the job is dropped and
// errors.ErrQueueFull is returned, so a slow consumer cannot stall the
// caller. Stop closes the queue and lets the workers finish what is
// already queued.
//
//	pool, err := worker.NewPool("export", 1, 4096, publish,
//	    worker.WithLogger[Job](logger))
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
package worker
