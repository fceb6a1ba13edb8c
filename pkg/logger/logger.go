package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Log = zerolog.Nop()

func Init(isDev bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if isDev {
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	} else {
		Log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// SetLevel applies a textual level ("debug", "info", ...). Unknown values keep the current level.
func SetLevel(level string) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		Log.Warn().Str("level", level).Msg("unknown log level, keeping default")
		return
	}
	Log = Log.Level(lvl)
}

func IsDev() bool {
	env := os.Getenv("ENV")
	return env == "" || env == "dev" || env == "development"
}
