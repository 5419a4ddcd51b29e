// Package groutine starts the background workers of btflow under pprof labels.
//
// Every long-lived or fire-and-forget goroutine in the module goes through Go:
// the timer supervisor tick loop, simulated and go-ble discovery cycles, the
// notification outbox and pairing loopback publishes. Their names show up in
// goroutine profiles as the "worker" label, and a worker started from inside
// another one also carries the "parent" label.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey struct{}

const (
	workerLabel = "worker"
	parentLabel = "parent"
)

// Go runs fn on a new goroutine labelled with name. A nil parentCtx means
// context.Background().
//
//	groutine.Go(ctx, "sim-discovery", func(ctx context.Context) {
//	    runCycle(ctx)
//	})
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := []string{workerLabel, name}
	if parent := Name(parentCtx); parent != "" {
		labels = append(labels, parentLabel, parent)
	}

	go pprof.Do(parentCtx, pprof.Labels(labels...), func(ctx context.Context) {
		fn(context.WithValue(ctx, ctxKey{}, name))
	})
}

// Name returns the worker name carried by ctx, or "" outside Go.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(ctxKey{}).(string)
	return name
}
