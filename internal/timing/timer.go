// Package timing logs the wall-clock time of labelled sections of a run.
package timing

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Timer records start times by label and logs the elapsed time on Stop.
// It is safe for concurrent use.
type Timer struct {
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	starts map[string]time.Time
}

// New returns a timer that logs to logger. A nil logger discards output.
func New(logger *zap.Logger) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timer{
		logger: logger,
		now:    time.Now,
		starts: make(map[string]time.Time),
	}
}

// Start marks the beginning of label. Starting a running label restarts it.
func (t *Timer) Start(label string) {
	at := t.now()

	t.mu.Lock()
	t.starts[label] = at
	t.mu.Unlock()

	t.logger.Info("Start", zap.String("label", label), zap.Time("at", at))
}

// Stop ends label and returns its elapsed time. Stopping a label that was
// never started logs a warning and returns zero.
func (t *Timer) Stop(label string) time.Duration {
	at := t.now()

	t.mu.Lock()
	started, ok := t.starts[label]
	delete(t.starts, label)
	t.mu.Unlock()

	if !ok {
		t.logger.Warn("Stop without start", zap.String("label", label))
		return 0
	}

	elapsed := at.Sub(started)
	t.logger.Info("End",
		zap.String("label", label),
		zap.Duration("elapsed", elapsed),
		zap.String("elapsed_text", elapsed.String()),
	)
	return elapsed
}

// Running reports whether label has been started and not stopped.
func (t *Timer) Running(label string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.starts[label]
	return ok
}
