package video_batch

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
)

type loggerKey struct{}

// WithLogger attaches a logger to the context, for retrieval with Logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached with WithLogger, or the global zap logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.L()
}

var errIdleTimeout = errors.New("read timed out")

// A context-aware io.Reader wrapper which also gives up if any single Read takes longer than timeout. The cancel
// function should abort whatever is blocking the Read (normally the request context).
type readerContext struct {
	ctx     context.Context
	r       io.Reader
	timeout time.Duration
	cancel  context.CancelFunc
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if r.timeout <= 0 {
		return r.r.Read(p)
	}
	timedOut := make(chan struct{})
	timer := time.AfterFunc(r.timeout, func() {
		close(timedOut)
		r.cancel()
	})
	n, err = r.r.Read(p)
	if !timer.Stop() {
		<-timedOut
		if err != nil {
			return n, errIdleTimeout
		}
	}
	return n, err
}
