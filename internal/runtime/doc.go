// Package runtime wires storage and the queue store into a single-node
// instance: it opens Pebble, restores the last snapshot and exposes the
// store, a dispatcher and a health check.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default(), Logger: logger})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	reply, _ := rt.Dispatcher().Execute(ctx, cmd)
package runtime
