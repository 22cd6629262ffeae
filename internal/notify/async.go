package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single background dispatch.
const DefaultTimeout = 15 * time.Second

// Background runs best-effort notification work off the request path. The
// request context's values are kept but its cancellation is not.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *zap.Logger
}

// NewBackground creates a tracker for asynchronous dispatches.
func NewBackground(timeout time.Duration, logger *zap.Logger) *Background {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Background{timeout: timeout, logger: logger}
}

// Go runs fn in a goroutine. Errors and panics are logged, never returned.
func (b *Background) Go(ctx context.Context, name string, fn func(context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				b.logger.Error("notification panicked", zap.String("notification", name), zap.Any("panic", p))
			}
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.logger.Warn("notification failed", zap.String("notification", name), zap.Error(err))
		}
	}()
}

// Drain waits for in-flight dispatches or until ctx is done.
func (b *Background) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
