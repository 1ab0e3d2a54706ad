// Package logging constructs the zap logger every stage binary uses,
// writing to stderr and a rotating file side by side, in the shape the
// teacher's cmd/fsb/run.go expects from its own (unretrieved) logger
// package: InitLogger(dev bool, level string) followed by a package
// logger usable via Named().
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide structured logger, set by InitLogger.
var Logger *zap.Logger

// InitLogger builds Logger writing JSON to a rotating file under
// logs/<name>.log and human-readable console output to stderr. dev
// enables DebugLevel and stack traces regardless of level.
func InitLogger(name string, dev bool, level string) {
	lvl := zapcore.InfoLevel
	if dev {
		lvl = zapcore.DebugLevel
	} else if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   "logs/" + name + ".log",
		MaxSize:    50, // MiB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), lvl),
		zapcore.NewCore(jsonEncoder, fileWriter, lvl),
	)

	opts := []zap.Option{zap.AddCaller()}
	if dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	Logger = zap.New(core, opts...)
}
