// Package logging wraps zerolog behind a small call surface
// (Debug/Info/Warn/Error/Success/Fatal/Section/Banner) backed by a real
// structured logger instead of hand-rolled ANSI codes over log.Println.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger zerolog.Logger

func init() {
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	defaultLogger = zerolog.New(writer).With().Timestamp().Logger()
}

// SetLevel sets the minimum level the default logger emits at.
func SetLevel(level zerolog.Level) {
	defaultLogger = defaultLogger.Level(level)
}

// Debug logs a debug-level message. Packet-level errors (checksum
// failures, decode failures) are logged at this level.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug().Msg(fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	defaultLogger.Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	defaultLogger.Error().Msg(fmt.Sprintf(format, args...))
}

// Success logs a positive-outcome message at info level, distinguished by a
// field so a JSON consumer can still filter on it.
func Success(format string, args ...interface{}) {
	defaultLogger.Info().Bool("success", true).Msg(fmt.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits the process.
func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal().Msg(fmt.Sprintf(format, args...))
}

// Section prints a section header to stdout, for grouping related
// startup log lines in the demo binary.
func Section(title string) {
	border := "───────────────────────────────────────────────────────────"
	fmt.Printf("\n%s\n %s\n%s\n\n", border, title, border)
}

// Banner prints the application banner for the demo binary.
func Banner(title, version string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s\n%s\nversion %s · %s\n%s\n\n",
		border, title, version, time.Now().Format(time.RFC3339), border)
}
