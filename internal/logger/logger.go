package logger

import (
	"io"
	"os"
	"time"
	"trackman-importer/internal/config"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New logs to stderr so command output on stdout stays clean. Terminals get
// the console writer unless log_format is json.
func New(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return build(os.Stderr, level, cfg.LogFormat)
}

func build(out *os.File, level zerolog.Level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var w io.Writer = out
	if format != "json" && isatty.IsTerminal(out.Fd()) {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}

	logger := zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(level)

	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

var Module = fx.Provide(New)
