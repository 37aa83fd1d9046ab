// Package log holds the process-wide zap logger.
package log

import (
	"fmt"
	stdlog "log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log        *zap.SugaredLogger
	baseLogger *zap.Logger
)

// Init builds the process logger. debug selects the development encoder and
// debug level; otherwise JSON at info level.
func Init(debug bool) error {
	var (
		zapLogger *zap.Logger
		err       error
	)

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

func ensure() {
	if log == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
}

// GetZapLogger returns the unsugared logger, for libraries that want one.
func GetZapLogger() *zap.Logger {
	ensure()
	return baseLogger
}

// GetSugaredLogger returns the process logger.
func GetSugaredLogger() *zap.SugaredLogger {
	ensure()
	return log
}

// Named returns a child of the process logger for one component.
func Named(name string) *zap.SugaredLogger {
	ensure()
	return baseLogger.WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(name)
}

// StdLogger adapts the process logger for APIs that take a *log.Logger,
// writing at level.
func StdLogger(level zapcore.Level) *stdlog.Logger {
	ensure()
	l, err := zap.NewStdLogAt(baseLogger.WithOptions(zap.AddCallerSkip(-1)), level)
	if err != nil {
		return zap.NewStdLog(baseLogger)
	}
	return l
}

// Sync flushes buffered entries.
func Sync() {
	if log != nil {
		log.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	ensure()
	log.Debugf(template, args...)
}

func Info(args ...interface{}) {
	ensure()
	log.Info(args...)
}

func Infof(template string, args ...interface{}) {
	ensure()
	log.Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	ensure()
	log.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	ensure()
	log.Errorf(template, args...)
}

func Fatalf(template string, args ...interface{}) {
	ensure()
	log.Fatalf(template, args...)
	os.Exit(1)
}
