package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger with component helpers.
type Logger struct {
	logger zerolog.Logger
}

// Default is the process-wide logger; Init replaces it.
var Default = &Logger{logger: zerolog.New(os.Stderr).With().Timestamp().Logger()}

// Init configures Default. level may be empty, in which case production
// environments log at info and everything else at debug.
func Init(level, environment string) {
	Default = New(os.Stdout, level, environment)
	Default.Debug().
		Str("level", Default.logger.GetLevel().String()).
		Msg("Logger initialized")
}

// New builds a logger writing to w. Production output is JSON, anything
// else goes through the console writer.
func New(w io.Writer, level, environment string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if environment != "production" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(out).Level(parseLevel(level, environment)).With().Timestamp().Logger()
	return &Logger{logger: l}
}

func parseLevel(level, environment string) zerolog.Level {
	if level == "" {
		if environment == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *Logger) WithStr(key, value string) *Logger {
	return &Logger{logger: l.logger.With().Str(key, value).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }

// For returns a child of Default tagged with a component name.
func For(component string) *Logger {
	return Default.WithStr("component", component)
}

// ForScraper returns a child of Default tagged with the store being scraped.
func ForScraper(source string) *Logger {
	return Default.WithStr("component", "scraper").WithStr("source", source)
}
