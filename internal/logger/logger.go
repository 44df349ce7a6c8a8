package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New creates a logger at the given level. Console output is used unless ENV
// indicates a production deployment, in which case JSON lines are emitted.
func New(level string) zerolog.Logger {
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		return NewProduction(level)
	}
	return NewDevelopment(level)
}

// NewDevelopment creates a console logger with human-readable timestamps.
func NewDevelopment(level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05",
	}
	return zerolog.New(output).Level(parseLevel(level)).With().Timestamp().Logger()
}

// NewProduction creates a JSON logger with UNIX timestamps.
func NewProduction(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(os.Stderr).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
