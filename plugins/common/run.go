package common

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run is one execution of a plugin or of an event handler
type Run struct {
	Plugin string
	Launch time.Time

	ctx    context.Context
	logger *zap.Logger
}

func NewRun(plugin string) *Run {
	return &Run{
		Plugin: plugin,
		Launch: time.Now(),
	}
}

// Context returns the context of the run, context.Background if none has been set
func (r *Run) Context() context.Context {
	if r.ctx == nil {
		r.ctx = context.Background()
	}

	return r.ctx
}

func (r *Run) WithContext(ctx context.Context) {
	r.ctx = ctx
}

// Logger returns the logger of the run, a no-op logger if none has been set
func (r *Run) Logger() *zap.Logger {
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	return r.logger
}

func (r *Run) WithLogger(logger *zap.Logger) {
	r.logger = logger
}

// Elapsed is the time since the run launched
func (r *Run) Elapsed() time.Duration {
	return time.Since(r.Launch)
}
