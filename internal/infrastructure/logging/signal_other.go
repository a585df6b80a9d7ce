//go:build !unix

package logging

import "context"

// WatchDebugSignal is a no-op where SIGUSR1 does not exist.
func (l *Logger) WatchDebugSignal(ctx context.Context) {
	<-ctx.Done()
}
