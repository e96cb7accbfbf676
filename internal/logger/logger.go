package logger

import (
	"go.uber.org/zap"
)

var l *zap.SugaredLogger = zap.NewNop().Sugar()

// Init builds the process logger. Call once from main before anything logs.
func Init() error {
	zl, err := zap.NewProduction()
	if err != nil {
		return err
	}
	l = zl.Sugar()
	return nil
}

// L returns the shared logger. Safe to call before Init; logs are dropped
// until Init runs, which keeps tests quiet.
func L() *zap.SugaredLogger {
	return l
}

// Sync flushes buffered entries. Deferred from main.
func Sync() {
	_ = l.Sync()
}
