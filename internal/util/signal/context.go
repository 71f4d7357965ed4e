package signal

import (
	"context"
	"os"
	"os/signal"
)

// NotifyContext is like signal.NotifyContext, but a second signal kills the process right away.
// This helps when graceful shutdown hangs.
func NotifyContext(parent context.Context, sig ...os.Signal) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, sig...)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
			return
		}
		<-sigCh
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
