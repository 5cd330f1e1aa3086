package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure sets up the global zerolog logger. Console output always goes to
// stderr; when file is non-empty a rotating file is written as well.
func Configure(level, file string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldUnit = time.Millisecond

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var console io.Writer = os.Stderr
	if pretty {
		console = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.DateTime,
		}
	}

	writers := []io.Writer{console}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(lvl)
}

// WithUser returns a child logger tagged with user_id.
func WithUser(userID int) zerolog.Logger {
	return log.With().Int("user_id", userID).Logger()
}

// WithComment returns a child logger tagged with comment_id.
func WithComment(commentID int) zerolog.Logger {
	return log.With().Int("comment_id", commentID).Logger()
}
