// Package logger provides elapsed-time prefixed logging for check runs.
package logger

import (
	"fmt"
	"os"
	"time"
)

// Level represents the logging level
type Level int

const (
	// LevelOff disables all logging
	LevelOff Level = iota
	// LevelInfo shows one line per significant step
	LevelInfo
	// LevelDebug additionally shows per-lookup details
	LevelDebug
)

var (
	currentLevel = LevelOff
	startTime    = time.Now()
)

// SetLevel sets the global logging level and resets the elapsed clock.
func SetLevel(level Level) {
	currentLevel = level
	startTime = time.Now()
}

// GetLevel returns the current logging level
func GetLevel() Level {
	return currentLevel
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return currentLevel >= LevelDebug
}

// Info logs a progress message prefixed with the elapsed run time.
func Info(format string, args ...interface{}) {
	if currentLevel >= LevelInfo {
		emit("", format, args...)
	}
}

// Debug logs a detail message (shown with --debug)
func Debug(format string, args ...interface{}) {
	if currentLevel >= LevelDebug {
		emit("[DEBUG] ", format, args...)
	}
}

// Error logs a failure that the run recovers from.
func Error(format string, args ...interface{}) {
	if currentLevel >= LevelInfo {
		emit("[ERROR] ", format, args...)
	}
}

func emit(tag string, format string, args ...interface{}) {
	elapsed := time.Since(startTime).Seconds()
	prefix := fmt.Sprintf("[%.2fs] %s", elapsed, tag)
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
