// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger at the named level. Console output is
// human readable; otherwise one JSON object per line is written to stderr.
func Setup(level string, console bool) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return log.Logger, err
	}

	var w io.Writer = os.Stderr
	if console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger, nil
}

// ParseLevel accepts zerolog level names plus "warning". The empty string
// selects info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// Badger adapts l to badger's Logger interface. Badger terminates its
// messages with a newline, which is trimmed.
func Badger(l zerolog.Logger) BadgerLogger {
	return BadgerLogger{l: l.With().Str("component", "badger").Logger()}
}

// BadgerLogger forwards badger's printf-style logging to zerolog.
type BadgerLogger struct {
	l zerolog.Logger
}

func (b BadgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error().Msg(trim(format, args))
}

func (b BadgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn().Msg(trim(format, args))
}

func (b BadgerLogger) Infof(format string, args ...interface{}) {
	b.l.Info().Msg(trim(format, args))
}

func (b BadgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug().Msg(trim(format, args))
}

func trim(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
