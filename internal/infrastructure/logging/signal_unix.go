//go:build unix

package logging

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchDebugSignal flips the process between debug and its configured level
// each time SIGUSR1 arrives, until ctx is done.
//
// Usage:
//
//	go log.WatchDebugSignal(ctx)
//	// kill -USR1 <pid>
func (l *Logger) WatchDebugSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	l.watchToggle(ctx, ch)
}

func (l *Logger) watchToggle(ctx context.Context, ch <-chan os.Signal) {
	base := l.Level()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			now := l.toggleDebug(base)
			l.Info("log level changed", "level", now.String())
		}
	}
}
