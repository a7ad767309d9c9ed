package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Debug mode switches to human readable
// console output, otherwise logs are JSON.
func Setup(level string, debug bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

// With returns a logger with additional fields
func With(fields ...any) zerolog.Logger {
	return log.Logger.With().Fields(fields).Logger()
}
