package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It discards everything until Init is called.
var Log = zap.NewNop()

func Init(level string) error {
	logLevel := zapcore.InfoLevel
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(logLevel)
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.DisableStacktrace = logLevel > zapcore.DebugLevel

	built, err := config.Build()
	if err != nil {
		return err
	}

	Log = built
	zap.ReplaceGlobals(built)
	return nil
}

func Sync() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}
