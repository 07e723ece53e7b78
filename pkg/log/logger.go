package log

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger and returns a context carrying it.
func Setup(ctx context.Context, debug bool) context.Context {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.DateTime,
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	return logger.WithContext(ctx)
}

// FromCtx returns the logger attached to ctx, falling back to the global one.
func FromCtx(ctx context.Context) *zerolog.Logger {
	return log.Ctx(ctx)
}
