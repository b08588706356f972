// Package logger provides leveled logging over the standard log package.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger = &Logger{level: InfoLevel, logger: log.New(os.Stderr, "", log.LstdFlags)}

// Init configures the default logger. Format "text" adds source locations.
func Init(level string, format string) {
	var l Level
	switch strings.ToLower(level) {
	case "debug":
		l = DebugLevel
	case "warn":
		l = WarnLevel
	case "error":
		l = ErrorLevel
	default:
		l = InfoLevel
	}

	flags := log.LstdFlags
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  l,
		logger: log.New(os.Stderr, "", flags),
	}
}

func output(min Level, tag string, format string, args ...any) {
	if defaultLogger.level > min {
		return
	}
	msg := fmt.Sprintf(tag+format, args...)
	_ = defaultLogger.logger.Output(3, msg)
}

func Debug(format string, args ...any) { output(DebugLevel, "[DEBUG] ", format, args...) }

func Info(format string, args ...any) { output(InfoLevel, "[INFO] ", format, args...) }

func Warn(format string, args ...any) { output(WarnLevel, "[WARN] ", format, args...) }

func Error(format string, args ...any) { output(ErrorLevel, "[ERROR] ", format, args...) }

// Fatal logs the message and exits.
func Fatal(format string, args ...any) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	_ = defaultLogger.logger.Output(3, msg)
	os.Exit(1)
}
