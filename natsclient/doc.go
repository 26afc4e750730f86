// Package natsclient wraps a NATS connection used to export runtime events.
//
// The client adds a circuit breaker and connect retries on top of nats.go.
// Connect retries transient dial failures with the pkg/retry policy; after
// a threshold of consecutive failures the circuit opens and Connect fails
// fast with ErrCircuitOpen until the backoff elapses. Once connected,
// nats.go handles reconnection and the client only tracks status.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMaxReconnects(-1))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//	err = client.Publish(ctx, "empower.events.lvap_join", payload)
package natsclient
