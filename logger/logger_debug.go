//go:build debug
// +build debug

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
)

var (
	Log = logrus.New()
)

// Debug builds log everything with the calling site attached.
func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.TraceLevel)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "01-02 15:04:05",
	})
}

// Config represents the logger configuration
type Config struct {
	// Level is the minimum log level that will be logged
	Level string
	// Format is the log format (text or json)
	Format string
	// Output is the log output file path (if empty, uses stderr)
	Output string
	// Debug enables debug mode
	Debug bool
}

func Init(config *Config) error {
	if config == nil {
		return nil
	}

	if config.Level != "" {
		level, err := logrus.ParseLevel(config.Level)
		if err != nil {
			return err
		}
		Log.SetLevel(level)
	}

	switch config.Format {
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "01-02 15:04:05",
		})
	}

	if config.Output != "" {
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		Log.SetOutput(file)
	}

	if config.Debug {
		Log.SetLevel(logrus.TraceLevel)
	}
	return nil
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

func WithError(err error) *logrus.Entry {
	return Log.WithError(err)
}

func Tracef(format string, args ...interface{}) {
	Log.Tracef(getDebugInfoPrefix(2)+format, args...)
}

func Debug(args ...interface{}) {
	Debugf("%v", fmt.Sprint(args...))
}

func Debugf(format string, args ...interface{}) {
	Log.Debugf(getDebugInfoPrefix(2)+format, args...)
}

func Info(args ...interface{}) {
	Log.Info(args...)
}

func Warn(args ...interface{}) {
	Log.Warn(args...)
}

func Error(args ...interface{}) {
	Log.Error(args...)
}

func Infof(format string, args ...interface{}) {
	Log.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Log.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	Log.Errorf(format, args...)
}

// depth 2 is the caller of the exported helper
func getDebugInfoPrefix(depth int) string {
	pc, file, line, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}
	callee := runtime.FuncForPC(pc).Name()
	if lastDot := strings.LastIndex(callee, "."); lastDot >= 0 {
		callee = callee[lastDot+1:]
	}
	if os.Getenv("LOG_COLOR") != "" {
		return fmt.Sprintf("%s(), @[%s:%d]  ", callee, filepath.Base(file), line)
	}
	return fmt.Sprintf("\033[32m%s\033[0m(), @[\033[33m%s:%d\033[0m]  ", callee, filepath.Base(file), line)
}

// Pretty renders args with kr/pretty before logging them at debug level.
func Pretty(format string, args ...interface{}) {
	formatted := make([]interface{}, len(args))
	for i, arg := range args {
		if arg == nil {
			formatted[i] = "<nil>"
			continue
		}
		formatted[i] = pretty.Sprint(arg)
	}
	Log.Debugf(getDebugInfoPrefix(2)+format, formatted...)
}
