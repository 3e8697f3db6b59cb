// zaplogger.go
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildLogger creates and returns a new logger instance with the given log level and
// encoding format ("json" or "console").
func BuildLogger(logLevel LogLevel, encoding string) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(convertToZapLevel(logLevel)),
	)

	logz := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &defaultLogger{
		logger:   logz,
		logLevel: logLevel,
	}
}

// Nop returns a logger that discards all messages. Intended for tests and for callers
// that opt out of logging entirely.
func Nop() Logger {
	return &defaultLogger{
		logger:   zap.NewNop(),
		logLevel: LogLevelNone,
	}
}

// convertToZapLevel maps the package's LogLevel to the corresponding zapcore.Level.
func convertToZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}
