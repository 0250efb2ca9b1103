// Package debug provides opt-in diagnostic logging. RECMIG_DEBUG
// enables it; RECMIG_DEBUG_FILE redirects output from stderr into a
// size-rotated log file.
package debug

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	enabled = os.Getenv("RECMIG_DEBUG") != ""
	sink    = newSink()
)

func newSink() io.Writer {
	file := os.Getenv("RECMIG_DEBUG_FILE")
	if file == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    getEnvInt("RECMIG_DEBUG_LOG_MAX_SIZE", 10),
		MaxBackups: getEnvInt("RECMIG_DEBUG_LOG_MAX_BACKUPS", 3),
		MaxAge:     getEnvInt("RECMIG_DEBUG_LOG_MAX_AGE", 7),
		Compress:   true,
	}
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Enabled reports whether debug logging is on
func Enabled() bool {
	return enabled
}

// Logf writes one timestamped line to the debug sink
func Logf(format string, args ...interface{}) {
	if !enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(sink, "[%s] %s\n", timestamp, msg)
}
